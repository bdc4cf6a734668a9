// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package depth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/depth/task"
	"github.com/klauspost/compress/gzip"
)

// run is a maximal span [start, end) of constant depth.  Runs are ordered by
// start in the per-chromosome trees.
type run struct {
	start, end uint32
	depth      int32
}

// Compare implements llrb.Comparable.
func (r run) Compare(c llrb.Comparable) int {
	r2 := c.(run)
	switch {
	case r.start < r2.start:
		return -1
	case r.start > r2.start:
		return 1
	}
	return 0
}

// Index holds the runs of a bedGraph file.  It is read-only after
// ReadBedGraph returns, so Scan may be called concurrently.
//
// Bases not covered by any run have depth 0.
type Index struct {
	chroms  []string
	trees   map[string]*llrb.Tree
	extents map[string]uint32
	nRuns   int
}

var _ task.Source[int32] = (*Index)(nil)

type bedGraphRow struct {
	Chrom string
	Start int64
	End   int64
	Depth int64
}

var gzipMagic = [2]byte{0x1f, 0x8b}

// ReadBedGraph decodes a 4-column bedGraph stream (chrom, 0-based start, end,
// depth), optionally gzip or bgzip compressed.  Lines starting with '#' are
// skipped.  Rows with start >= end and rows overlapping an earlier row on the
// same chromosome are rejected with errors.Invalid.
func ReadBedGraph(r io.ReadSeeker) (*Index, error) {
	var magic [2]byte
	n, err := io.ReadFull(r, magic[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	// Rewind; with a buffered remote reader this stays inside the window.
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var in io.Reader = r
	if n == len(magic) && magic == gzipMagic {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "bedGraph")
		}
		defer gz.Close() // nolint: errcheck
		in = gz
	}
	scanner := tsv.NewReader(bufio.NewReaderSize(in, 64<<10))
	scanner.Comment = '#'

	idx := &Index{
		trees:   map[string]*llrb.Tree{},
		extents: map[string]uint32{},
	}
	var row bedGraphRow
	for line := 1; ; line++ {
		if err := scanner.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("bedGraph row %d", line))
		}
		if err := idx.add(row); err != nil {
			return nil, errors.E(err, fmt.Sprintf("bedGraph row %d", line))
		}
	}
	return idx, nil
}

func (x *Index) add(row bedGraphRow) error {
	if row.Start < 0 || row.End > math.MaxUint32 || row.Start >= row.End {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid interval %s:%d-%d", row.Chrom, row.Start, row.End))
	}
	if row.Depth < math.MinInt32 || row.Depth > math.MaxInt32 {
		return errors.E(errors.Invalid, fmt.Sprintf("depth %d out of range", row.Depth))
	}
	rn := run{start: uint32(row.Start), end: uint32(row.End), depth: int32(row.Depth)}
	tree := x.trees[row.Chrom]
	if tree == nil {
		tree = &llrb.Tree{}
		x.trees[row.Chrom] = tree
		x.chroms = append(x.chroms, row.Chrom)
	}
	if c := tree.Floor(rn); c != nil && c.(run).end > rn.start {
		prev := c.(run)
		return errors.E(errors.Invalid, fmt.Sprintf("%s:%d-%d overlaps %d-%d", row.Chrom, rn.start, rn.end, prev.start, prev.end))
	}
	if c := tree.Ceil(rn); c != nil && c.(run).start < rn.end {
		next := c.(run)
		return errors.E(errors.Invalid, fmt.Sprintf("%s:%d-%d overlaps %d-%d", row.Chrom, rn.start, rn.end, next.start, next.end))
	}
	tree.Insert(rn)
	if rn.end > x.extents[row.Chrom] {
		x.extents[row.Chrom] = rn.end
	}
	x.nRuns++
	return nil
}

// Chroms returns the chromosome names in order of first appearance.
func (x *Index) Chroms() []string { return x.chroms }

// NumRuns returns the number of runs in the index.
func (x *Index) NumRuns() int { return x.nRuns }

// Extent returns the end of the last run on chrom.
func (x *Index) Extent(chrom string) (uint32, bool) {
	end, ok := x.extents[chrom]
	return end, ok
}

// Scan implements task.Source.  Runs are reported unclipped; the gaps between
// them inside [left, right) are reported with depth 0.
func (x *Index) Scan(ctx context.Context, chrom string, left, right uint32, fn func(left, right uint32, value int32) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if left >= right {
		return nil
	}
	pos := left
	stopped := false
	if tree := x.trees[chrom]; tree != nil {
		var from llrb.Comparable = run{start: left}
		if c := tree.Floor(from); c != nil && c.(run).end > left {
			from = c
		}
		tree.DoRange(func(c llrb.Comparable) bool {
			rn := c.(run)
			if rn.start > pos && !fn(pos, rn.start, 0) {
				stopped = true
				return true
			}
			if !fn(rn.start, rn.end, rn.depth) {
				stopped = true
				return true
			}
			pos = rn.end
			return false
		}, from, run{start: right})
	}
	if !stopped && pos < right {
		fn(pos, right, 0)
	}
	return nil
}
