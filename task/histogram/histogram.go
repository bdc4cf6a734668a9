// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package histogram counts depth values over a region into fixed buckets.
package histogram

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/depth/task"
)

// BinRange is the half-open value interval [Start, End); each value in it
// gets its own bucket.
type BinRange struct {
	Start, End int32
}

// Len returns the number of buckets, never negative.
func (b BinRange) Len() int {
	if b.End <= b.Start {
		return 0
	}
	return int(int64(b.End) - int64(b.Start))
}

// DefaultBinRange is the bucket layout used by New.
var DefaultBinRange = BinRange{Start: 0, End: 1000}

// Output is the result of one partition, or of the whole task.
type Output struct {
	// Below counts runs whose value is below the bin range.  Each run counts
	// once, whatever its width.  Runs are clipped at partition boundaries, so
	// a run crossing k partitions counts k times and the total depends on the
	// partition width.
	Below uint32
	// Histogram[i] is the number of bases with value BinRange.Start+i.
	Histogram []uint32
	// Above is the number of bases with a value at or past BinRange.End.
	Above uint32
}

// Task computes a depth histogram of a region.
type Task struct {
	region task.Region
	bins   BinRange
}

var _ task.Task[int32, Output, Output] = (*Task)(nil)

// New returns a histogram task over chrom:[begin, end) with DefaultBinRange.
func New(chrom string, begin, end uint32) *Task {
	return NewWithBinRange(chrom, begin, end, DefaultBinRange)
}

// NewWithBinRange returns a histogram task over chrom:[begin, end) with an
// explicit bucket layout.
func NewWithBinRange(chrom string, begin, end uint32, bins BinRange) *Task {
	return &Task{
		region: task.Region{Chrom: chrom, Begin: begin, End: end},
		bins:   bins,
	}
}

// Region implements task.Task.
func (t *Task) Region() task.Region { return t.region }

// BinRange returns the bucket layout.
func (t *Task) BinRange() BinRange { return t.bins }

// NewPartition implements task.Task.
func (t *Task) NewPartition(left, right uint32) task.Partition[int32, Output] {
	return &Partition{
		left:      left,
		right:     right,
		base:      t.bins.Start,
		histogram: make([]uint32, t.bins.Len()),
	}
}

// Combine implements task.Task.  Buckets and counters are summed, so the
// order of parts does not matter.
func (t *Task) Combine(parts []Output) Output {
	if len(parts) == 0 {
		return Output{Histogram: []uint32{}}
	}
	out := Output{Histogram: make([]uint32, len(parts[0].Histogram))}
	for _, p := range parts {
		for i, n := range p.Histogram {
			out.Histogram[i] += n
		}
		out.Below += p.Below
		out.Above += p.Above
	}
	return out
}

// Partition accumulates the histogram of one sub-range.
type Partition struct {
	left, right uint32
	base        int32
	histogram   []uint32
	below       uint32
	above       uint32
	done        bool
}

// Scope implements task.Partition.
func (p *Partition) Scope() (uint32, uint32) { return p.left, p.right }

// Feed implements task.Partition.
func (p *Partition) Feed(pos uint32, value int32) bool {
	return p.FeedRange(pos, pos+1, value)
}

// FeedRange implements task.Partition.  It always asks for more input.
func (p *Partition) FeedRange(left, right uint32, value int32) bool {
	if p.done {
		log.Panicf("histogram: feeding finalized partition [%d, %d)", p.left, p.right)
	}
	offset := int64(value) - int64(p.base)
	switch {
	case offset < 0:
		p.below++
	case offset >= int64(len(p.histogram)):
		p.above += right - left
	default:
		p.histogram[offset] += right - left
	}
	return true
}

// IntoResult implements task.Partition.
func (p *Partition) IntoResult() Output {
	if p.done {
		log.Panicf("histogram: partition [%d, %d) finalized twice", p.left, p.right)
	}
	p.done = true
	out := Output{Below: p.below, Histogram: p.histogram, Above: p.above}
	p.histogram = nil
	return out
}
