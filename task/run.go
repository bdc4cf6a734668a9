// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package task

import (
	"context"
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Source reports run-length encoded observations.
type Source[V any] interface {
	// Scan calls fn in coordinate order for every run overlapping
	// [left, right) on chrom.  Runs may extend past either bound.  Scanning
	// stops when fn returns false.
	Scan(ctx context.Context, chrom string, left, right uint32, fn func(left, right uint32, value V) bool) error
}

// RunOpts configures Run.
type RunOpts struct {
	// Parallelism is the maximum number of concurrent jobs; 0 means
	// runtime.NumCPU().
	Parallelism int
	// PartitionWidth is the maximum number of bases per partition; 0 means
	// one partition for the whole region.
	PartitionWidth uint32
}

// DefaultRunOpts is the default Run configuration.
var DefaultRunOpts = RunOpts{
	PartitionWidth: 1 << 20,
}

// Run splits t's region into partitions, feeds every partition the runs src
// reports for its scope (clipped to the scope), finalizes each partition once
// and combines the results in partition order.
//
// Each job owns a contiguous slice of partitions, so src must support
// concurrent Scan calls.  The first error aborts the run.
func Run[V, R, O any](ctx context.Context, t Task[V, R, O], src Source[V], opts RunOpts) (out O, err error) {
	region := t.Region()
	scopes := Split(region, opts.PartitionWidth)
	results := make([]R, len(scopes))
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(scopes) {
		parallelism = len(scopes)
	}
	if parallelism > 0 {
		log.Printf("task.Run: %v: starting %d partitions (%d jobs)", region, len(scopes), parallelism)
		err = traverse.Each(parallelism, func(jobIdx int) error {
			startIdx := (jobIdx * len(scopes)) / parallelism
			endIdx := ((jobIdx + 1) * len(scopes)) / parallelism
			for i := startIdx; i < endIdx; i++ {
				if e := ctx.Err(); e != nil {
					return e
				}
				var e error
				if results[i], e = runPartition(ctx, t, src, scopes[i]); e != nil {
					return e
				}
			}
			return nil
		})
		if err != nil {
			return
		}
		log.Printf("task.Run: %v: partitions complete", region)
	}
	out = t.Combine(results)
	return
}

func runPartition[V, R, O any](ctx context.Context, t Task[V, R, O], src Source[V], scope Region) (result R, err error) {
	p, err := NewPartition(t, scope.Begin, scope.End)
	if err != nil {
		return
	}
	left, right := p.Scope()
	log.Debug.Printf("task.Run: feeding %s:%d-%d", scope.Chrom, left, right)
	err = src.Scan(ctx, scope.Chrom, left, right, func(runLeft, runRight uint32, value V) bool {
		if runLeft < left {
			runLeft = left
		}
		if runRight > right {
			runRight = right
		}
		if runLeft >= runRight {
			return true
		}
		return p.FeedRange(runLeft, runRight, value)
	})
	if err != nil {
		return
	}
	return p.IntoResult(), nil
}
