// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package depth_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/depth/depth"
	"github.com/grailbio/depth/encoding/bgzf"
	"github.com/grailbio/depth/httpio"
	"github.com/grailbio/depth/task"
	"github.com/grailbio/depth/task/histogram"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const testBedGraph = `# bedtools genomecov -bg
chr1	0	3	2
chr1	3	5	10
chr1	5	10	2
chr1	20	25	7
chr2	100	200	1
`

type span struct {
	left, right uint32
	value       int32
}

func scanAll(t *testing.T, idx *depth.Index, chrom string, left, right uint32) []span {
	var got []span
	err := idx.Scan(context.Background(), chrom, left, right, func(l, r uint32, v int32) bool {
		got = append(got, span{l, r, v})
		return true
	})
	assert.NoError(t, err)
	return got
}

func gzipped(t *testing.T, data string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

func bgzipped(t *testing.T, data string) []byte {
	var buf bytes.Buffer
	w, err := bgzf.NewWriterParams(&buf, gzip.DefaultCompression, 16)
	assert.NoError(t, err)
	_, err = w.Write([]byte(data))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReadBedGraph(t *testing.T) {
	for _, data := range [][]byte{[]byte(testBedGraph), gzipped(t, testBedGraph), bgzipped(t, testBedGraph)} {
		idx, err := depth.ReadBedGraph(bytes.NewReader(data))
		assert.NoError(t, err)
		expect.EQ(t, idx.Chroms(), []string{"chr1", "chr2"})
		expect.EQ(t, idx.NumRuns(), 5)
		end, ok := idx.Extent("chr1")
		expect.True(t, ok)
		expect.EQ(t, end, uint32(25))
		_, ok = idx.Extent("chr3")
		expect.False(t, ok)
	}
}

func TestScanFillsGaps(t *testing.T) {
	idx, err := depth.ReadBedGraph(strings.NewReader(testBedGraph))
	assert.NoError(t, err)

	expect.EQ(t, scanAll(t, idx, "chr1", 0, 30), []span{
		{0, 3, 2}, {3, 5, 10}, {5, 10, 2}, {10, 20, 0}, {20, 25, 7}, {25, 30, 0}})
	// Runs straddling the bounds are reported whole.
	expect.EQ(t, scanAll(t, idx, "chr1", 4, 22), []span{{3, 5, 10}, {5, 10, 2}, {10, 20, 0}, {20, 25, 7}})
	expect.EQ(t, scanAll(t, idx, "chr1", 12, 18), []span{{12, 18, 0}})
	expect.EQ(t, scanAll(t, idx, "chr2", 0, 150), []span{{0, 100, 0}, {100, 200, 1}})
	expect.EQ(t, scanAll(t, idx, "chrM", 5, 9), []span{{5, 9, 0}})
	expect.EQ(t, len(scanAll(t, idx, "chr1", 9, 9)), 0)
}

func TestScanStops(t *testing.T) {
	idx, err := depth.ReadBedGraph(strings.NewReader(testBedGraph))
	assert.NoError(t, err)
	n := 0
	err = idx.Scan(context.Background(), "chr1", 0, 30, func(l, r uint32, v int32) bool {
		n++
		return n < 2
	})
	assert.NoError(t, err)
	expect.EQ(t, n, 2)
}

func TestReadBedGraphErrors(t *testing.T) {
	for _, data := range []string{
		"chr1\t0\t10\t1\nchr1\t5\t15\t1\n",
		"chr1\t10\t20\t1\nchr1\t0\t11\t1\n",
		"chr1\t10\t20\t1\nchr1\t10\t12\t1\n",
		"chr1\t10\t10\t1\n",
		"chr1\t-1\t10\t1\n",
		"chr1\t0\t10\tdeep\n",
	} {
		_, err := depth.ReadBedGraph(strings.NewReader(data))
		require.Error(t, err, data)
		if !errors.Is(errors.Invalid, err) {
			t.Errorf("%q: unexpected error kind: %v", data, err)
		}
	}
}

func TestLoadLocal(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	plain := filepath.Join(tempDir, "a.bedgraph")
	assert.NoError(t, ioutil.WriteFile(plain, []byte(testBedGraph), 0644))
	compressed := filepath.Join(tempDir, "a.bedgraph.gz")
	assert.NoError(t, ioutil.WriteFile(compressed, gzipped(t, testBedGraph), 0644))

	for _, path := range []string{plain, compressed} {
		f, err := depth.Open(ctx, path, httpio.DefaultOpts)
		assert.NoError(t, err)
		expect.EQ(t, f.Path(), path)
		expect.True(t, f.Size() > 0)
		assert.NoError(t, f.Close(ctx))

		idx, err := depth.Load(ctx, path, httpio.DefaultOpts)
		assert.NoError(t, err)
		expect.EQ(t, idx.NumRuns(), 5)
	}

	_, err := depth.Load(ctx, filepath.Join(tempDir, "missing.bedgraph"), httpio.DefaultOpts)
	expect.True(t, err != nil)
}

func TestLoadRemote(t *testing.T) {
	data := gzipped(t, testBedGraph)
	var gets int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		http.ServeContent(w, req, "a.bedgraph.gz", time.Time{}, bytes.NewReader(data))
	}))
	defer s.Close()

	expect.True(t, depth.IsRemote(s.URL))
	expect.False(t, depth.IsRemote("/tmp/a.bedgraph"))
	idx, err := depth.Load(vcontext.Background(), s.URL+"/a.bedgraph.gz", httpio.DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, idx.NumRuns(), 5)
	// The format sniff rewinds inside the read-ahead window.
	expect.EQ(t, int(atomic.LoadInt32(&gets)), 1)
}

func TestHistogramOverIndex(t *testing.T) {
	idx, err := depth.ReadBedGraph(strings.NewReader(testBedGraph))
	assert.NoError(t, err)
	h := histogram.NewWithBinRange("chr1", 0, 10, histogram.BinRange{Start: 0, End: 5})
	out, err := task.Run[int32, histogram.Output, histogram.Output](context.Background(), h, idx,
		task.RunOpts{Parallelism: 2, PartitionWidth: 5})
	assert.NoError(t, err)
	expect.EQ(t, out, histogram.Output{Below: 0, Histogram: []uint32{0, 0, 8, 0, 0}, Above: 2})

	// Gaps count as depth 0.
	h = histogram.NewWithBinRange("chr1", 0, 30, histogram.BinRange{Start: 0, End: 5})
	out, err = task.Run[int32, histogram.Output, histogram.Output](context.Background(), h, idx,
		task.RunOpts{Parallelism: 3, PartitionWidth: 4})
	assert.NoError(t, err)
	expect.EQ(t, out, histogram.Output{Below: 0, Histogram: []uint32{15, 0, 8, 0, 0}, Above: 7})
}
