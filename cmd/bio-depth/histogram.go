// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/depth/depth"
	"github.com/grailbio/depth/encoding/bgzf"
	"github.com/grailbio/depth/httpio"
	"github.com/grailbio/depth/interval"
	"github.com/grailbio/depth/task"
	"github.com/grailbio/depth/task/histogram"
	"github.com/klauspost/compress/gzip"
)

type histogramOpts struct {
	// region is a region string parsed by interval.ParseRegionString.
	region string
	// bedPath names a BED file of regions.  Exactly one of region and bedPath
	// must be set.
	bedPath     string
	oneBasedBED bool

	// min and max bound the histogram buckets; see histogram.BinRange.
	min, max int

	parallelism    int
	partitionWidth uint
	bufferSize     int

	// out is the output path; "" and "-" mean stdout.
	out  string
	gzip bool
}

var defaultHistogramOpts = histogramOpts{
	min:            int(histogram.DefaultBinRange.Start),
	max:            int(histogram.DefaultBinRange.End),
	parallelism:    task.DefaultRunOpts.Parallelism,
	partitionWidth: uint(task.DefaultRunOpts.PartitionWidth),
	bufferSize:     httpio.DefaultBufferSize,
}

// maxBuckets bounds the per-partition histogram allocation.
const maxBuckets = 1 << 24

func (o histogramOpts) binRange() (histogram.BinRange, error) {
	if o.min < math.MinInt32 || o.min > math.MaxInt32 || o.max < math.MinInt32 || o.max > math.MaxInt32 {
		return histogram.BinRange{}, errors.E(errors.Invalid, fmt.Sprintf("bin range [%d, %d) out of range", o.min, o.max))
	}
	if o.max < o.min {
		return histogram.BinRange{}, errors.E(errors.Invalid, fmt.Sprintf("-max %d is below -min %d", o.max, o.min))
	}
	if int64(o.max)-int64(o.min) > maxBuckets {
		return histogram.BinRange{}, errors.E(errors.Invalid, fmt.Sprintf("bin range [%d, %d) has more than %d buckets", o.min, o.max, maxBuckets))
	}
	return histogram.BinRange{Start: int32(o.min), End: int32(o.max)}, nil
}

// regions returns the regions named by -region or -bed.  A whole-contig
// region ends at the last run of that contig in idx.
func (o histogramOpts) regions(ctx context.Context, idx *depth.Index) ([]task.Region, error) {
	if (o.region == "") == (o.bedPath == "") {
		return nil, errors.E(errors.Invalid, "exactly one of -region and -bed must be set")
	}
	if o.region != "" {
		entry, err := interval.ParseRegionString(o.region)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		if entry.Unbounded() {
			end, ok := idx.Extent(entry.ChrName)
			if !ok {
				return nil, errors.E(errors.NotExist, fmt.Sprintf("contig %s has no depth records", entry.ChrName))
			}
			entry.End = end
		}
		return []task.Region{{Chrom: entry.ChrName, Begin: entry.Start0, End: entry.End}}, nil
	}
	entries, err := interval.ReadBEDFromPath(ctx, o.bedPath, interval.BEDOpts{OneBasedInput: o.oneBasedBED})
	if err != nil {
		return nil, err
	}
	regions := make([]task.Region, len(entries))
	for i, e := range entries {
		regions[i] = task.Region{Chrom: e.ChrName, Begin: e.Start0, End: e.End}
	}
	return regions, nil
}

// runHistogram loads the depth track at path and writes one histogram per
// requested region.
func runHistogram(ctx context.Context, stdout io.Writer, path string, opts histogramOpts) (err error) {
	bins, err := opts.binRange()
	if err != nil {
		return err
	}
	idx, err := depth.Load(ctx, path, httpio.Opts{BufferSize: opts.bufferSize})
	if err != nil {
		return err
	}
	regions, err := opts.regions(ctx, idx)
	if err != nil {
		return err
	}
	runOpts := task.RunOpts{
		Parallelism:    opts.parallelism,
		PartitionWidth: uint32(opts.partitionWidth),
	}
	outputs := make([]histogram.Output, len(regions))
	for i, r := range regions {
		h := histogram.NewWithBinRange(r.Chrom, r.Begin, r.End, bins)
		if outputs[i], err = task.Run[int32, histogram.Output, histogram.Output](ctx, h, idx, runOpts); err != nil {
			return errors.E(err, r.String())
		}
	}
	log.Printf("histogram: %s: %d regions", path, len(regions))

	if opts.out == "" || opts.out == "-" {
		return writeHistograms(stdout, regions, outputs, bins, opts.gzip)
	}
	out, err := file.Create(ctx, opts.out)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return writeHistograms(out.Writer(ctx), regions, outputs, bins, opts.gzip)
}

// writeHistograms writes rows of
//   chrom begin end depth count
// with one row per nonempty bucket, labeled by its depth, framed by a
// "<min" row and a ">=max" row that are always present.
func writeHistograms(w io.Writer, regions []task.Region, outputs []histogram.Output, bins histogram.BinRange, compress bool) (err error) {
	if compress {
		var bw *bgzf.Writer
		if bw, err = bgzf.NewWriter(w, gzip.DefaultCompression); err != nil {
			return
		}
		defer func() {
			if e := bw.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = bw
	}
	belowLabel := "<" + strconv.Itoa(int(bins.Start))
	aboveLabel := ">=" + strconv.Itoa(int(bins.End))
	tw := tsv.NewWriter(w)
	tw.WriteString("#CHROM\tBEGIN\tEND\tDEPTH\tCOUNT")
	if err = tw.EndLine(); err != nil {
		return
	}
	for i, r := range regions {
		row := func(label string, count uint32) error {
			tw.WriteString(r.Chrom)
			tw.WriteUint32(r.Begin)
			tw.WriteUint32(r.End)
			tw.WriteString(label)
			tw.WriteUint32(count)
			return tw.EndLine()
		}
		out := outputs[i]
		if err = row(belowLabel, out.Below); err != nil {
			return
		}
		for bucket, count := range out.Histogram {
			if count == 0 {
				continue
			}
			if err = row(strconv.Itoa(int(bins.Start)+bucket), count); err != nil {
				return
			}
		}
		if err = row(aboveLabel, out.Above); err != nil {
			return
		}
	}
	return tw.Flush()
}
