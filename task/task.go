// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*Package task defines the scatter-gather contract used to aggregate depth
  values over a genomic region.

  A Task covers a Region.  The region is split into disjoint sub-ranges, one
  Partition is built per sub-range and fed run-length encoded observations,
  each partition is finalized into a partial result, and Task.Combine merges
  the partial results.  Partitions share no mutable state, so each one can be
  fed by its own goroutine; Combine is the only synchronization point.
*/
package task

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Region is a half-open interval [Begin, End) on a named sequence.
type Region struct {
	Chrom string
	Begin uint32
	End   uint32
}

// Len returns the number of bases covered by the region.
func (r Region) Len() uint32 {
	if r.End <= r.Begin {
		return 0
	}
	return r.End - r.Begin
}

// Covers reports whether [left, right) lies within the region.
func (r Region) Covers(left, right uint32) bool {
	return r.Begin <= left && left <= right && right <= r.End
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Begin, r.End)
}

// Partition accumulates observations for one sub-range of a task's region.
//
// A partition is owned by a single worker.  It is fed zero or more times and
// then finalized exactly once by IntoResult; it must not be fed afterwards.
type Partition[V, R any] interface {
	// Scope returns the sub-range [left, right) the partition is responsible
	// for.
	Scope() (left, right uint32)
	// Feed delivers a value observed at one position.  It is equivalent to
	// FeedRange(pos, pos+1, value).
	Feed(pos uint32, value V) bool
	// FeedRange delivers a value that holds for every position in
	// [left, right).  A false return asks the caller to stop feeding this
	// partition.
	FeedRange(left, right uint32, value V) bool
	// IntoResult finalizes the partition.
	IntoResult() R
}

// Task describes a region, how to build a partition for any of its
// sub-ranges, and how to merge the partitions' results.  V is the observation
// type, R the per-partition result and O the final output.
type Task[V, R, O any] interface {
	Region() Region
	// NewPartition builds the partition for [left, right).  The partition may
	// read the task's configuration but must not modify it.
	NewPartition(left, right uint32) Partition[V, R]
	// Combine merges partial results.  It must accept an empty slice.
	Combine(parts []R) O
}

// NewPartition builds t's partition for [left, right) after checking that the
// sub-range lies within t's region.  An errors.Precondition error is returned
// otherwise.
func NewPartition[V, R, O any](t Task[V, R, O], left, right uint32) (Partition[V, R], error) {
	region := t.Region()
	if !region.Covers(left, right) {
		return nil, errors.E(errors.Precondition,
			fmt.Sprintf("task.NewPartition: [%d, %d) outside region %v", left, right, region))
	}
	return t.NewPartition(left, right), nil
}

// Split breaks region into contiguous sub-ranges of at most width bases, in
// coordinate order.  An empty region yields no sub-ranges; width 0 yields a
// single sub-range covering the whole region.
func Split(region Region, width uint32) []Region {
	n := region.Len()
	if n == 0 {
		return nil
	}
	if width == 0 || width >= n {
		return []Region{{Chrom: region.Chrom, Begin: region.Begin, End: region.Begin + n}}
	}
	parts := make([]Region, 0, (n+width-1)/width)
	for left := region.Begin; left < region.End; {
		right := region.End
		if region.End-left > width {
			right = left + width
		}
		parts = append(parts, Region{Chrom: region.Chrom, Begin: left, End: right})
		left = right
	}
	return parts
}
