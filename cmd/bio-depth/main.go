// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
bio-depth computes statistics over per-base depth tracks.  Tracks are
bedGraph files (optionally gzip or bgzip compressed) on local disk, in any
store grailbio/base/file understands, or on an HTTP server that honors range
requests.

Sample usage:
  bio-depth histogram -region chr1:1-1000000 -max 200 https://host/sample.bedgraph.gz
  bio-depth histogram -bed targets.bed -out targets.hist.tsv.gz -gzip sample.bedgraph
  bio-depth size https://host/sample.bedgraph.gz
  bio-depth checksum https://host/sample.bedgraph.gz
*/
package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/depth/httpio"
	"v.io/x/lib/cmdline"
)

func newCmdHistogram() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "histogram",
		Short:    "Compute the depth histogram of one or more regions",
		ArgsName: "path",
	}
	opts := defaultHistogramOpts
	cmd.Flags.StringVar(&opts.region, "region", opts.region, "Region to summarize. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>; this xor -bed required")
	cmd.Flags.StringVar(&opts.bedPath, "bed", opts.bedPath, "BED file of regions to summarize, one histogram per line; this xor -region required")
	cmd.Flags.BoolVar(&opts.oneBasedBED, "bed-one-based", opts.oneBasedBED, "Interpret -bed boundaries as 1-based [start, end]")
	cmd.Flags.IntVar(&opts.min, "min", opts.min, "Smallest depth with its own bucket")
	cmd.Flags.IntVar(&opts.max, "max", opts.max, "Depths at or above this value are counted in the >=max row")
	cmd.Flags.IntVar(&opts.parallelism, "parallelism", opts.parallelism, "Maximum number of partitions processed at once; 0 = runtime.NumCPU()")
	cmd.Flags.UintVar(&opts.partitionWidth, "partition-width", opts.partitionWidth, "Width of each partition in bases; 0 = one partition per region. The <min count is per run within a partition, so it changes with this width")
	cmd.Flags.IntVar(&opts.bufferSize, "buffer-size", opts.bufferSize, "Read-ahead window for http(s) inputs, in bytes")
	cmd.Flags.StringVar(&opts.out, "out", opts.out, "Output TSV path; empty or - writes to stdout")
	cmd.Flags.BoolVar(&opts.gzip, "gzip", opts.gzip, "Compress the output with bgzip")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("histogram takes one pathname argument, but got %v", argv)
		}
		return runHistogram(vcontext.Background(), env.Stdout, argv[0], opts)
	})
	return cmd
}

func newCmdSize() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "size",
		Short:    "Print the size of a depth file in bytes",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("size takes one pathname argument, but got %v", argv)
		}
		return runSize(vcontext.Background(), env.Stdout, argv[0], httpio.DefaultOpts)
	})
	return cmd
}

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "checksum",
		Short:    "Print the size and seahash of a depth file",
		ArgsName: "path",
	}
	bufferSize := cmd.Flags.Int("buffer-size", httpio.DefaultBufferSize, "Read-ahead window for http(s) inputs, in bytes")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("checksum takes one pathname argument, but got %v", argv)
		}
		return runChecksum(vcontext.Background(), env.Stdout, argv[0], httpio.Opts{BufferSize: *bufferSize})
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "bio-depth",
		Short:    "Tools for summarizing per-base depth tracks",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdHistogram(),
			newCmdSize(),
			newCmdChecksum(),
		},
	})
}
