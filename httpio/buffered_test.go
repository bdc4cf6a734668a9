// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package httpio

import (
	"io"
	"io/ioutil"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

type seekOp struct {
	read   int // bytes to read; 0 means seek
	offset int64
	whence int
}

// replay applies ops to r and returns everything read plus the positions
// reported by each seek.
func replay(t *testing.T, r io.ReadSeeker, ops []seekOp) ([]byte, []int64) {
	var (
		got       []byte
		positions []int64
	)
	for i, op := range ops {
		if op.read > 0 {
			buf := make([]byte, op.read)
			n, err := io.ReadFull(r, buf)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				t.Fatalf("op %d: %v", i, err)
			}
			got = append(got, buf[:n]...)
			continue
		}
		pos, err := r.Seek(op.offset, op.whence)
		assert.NoError(t, err)
		positions = append(positions, pos)
	}
	return got, positions
}

func TestBufferedMatchesUnbuffered(t *testing.T) {
	data := testData(64)
	ops := []seekOp{
		{read: 4},
		{offset: 3, whence: io.SeekCurrent},
		{read: 4},
		{offset: 2, whence: io.SeekStart},
		{read: 5},
		{offset: -2, whence: io.SeekCurrent},
		{read: 3},
	}

	plain := newTestServer(data)
	defer plain.Close()
	r, err := NewReader(plain.URL, DefaultOpts)
	assert.NoError(t, err)
	want, wantPos := replay(t, r, ops)

	buffered := newTestServer(data)
	defer buffered.Close()
	r, err = NewReader(buffered.URL, Opts{BufferSize: 16})
	assert.NoError(t, err)
	br, err := r.Buffered()
	assert.NoError(t, err)
	got, gotPos := replay(t, br, ops)

	expect.EQ(t, got, want)
	expect.EQ(t, gotPos, wantPos)
	expect.EQ(t, gotPos, []int64{7, 2, 5})
	expect.EQ(t, buffered.nGet(), 1)
	expect.LE(t, buffered.nGet(), plain.nGet())
}

func TestBufferedSeekOutsideWindow(t *testing.T) {
	data := testData(64)
	s := newTestServer(data)
	defer s.Close()
	r, err := NewReader(s.URL, DefaultOpts)
	assert.NoError(t, err)
	br, err := NewBufferedReader(r, 16)
	assert.NoError(t, err)

	got, positions := replay(t, br, []seekOp{
		{read: 4},
		{offset: 40, whence: io.SeekStart},
		{read: 4},
		{offset: -8, whence: io.SeekCurrent},
		{read: 2},
		{offset: -10, whence: io.SeekEnd},
		{read: 10},
	})
	expect.EQ(t, positions, []int64{40, 36, 54})
	want := append(append(append([]byte{}, data[0:4]...), data[40:44]...), data[36:38]...)
	want = append(want, data[54:]...)
	expect.EQ(t, got, want)
	// [0,16) [40,56) [36,52) [54,64)
	expect.EQ(t, s.nGet(), 4)

	pos, err := br.Seek(0, io.SeekCurrent)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(64))
	n, err := br.Read(make([]byte, 4))
	expect.EQ(t, n, 0)
	expect.EQ(t, err, io.EOF)
}

func TestBufferedSeekSaturation(t *testing.T) {
	s := newTestServer(testData(32))
	defer s.Close()
	r, err := NewReader(s.URL, DefaultOpts)
	assert.NoError(t, err)
	br, err := r.Buffered()
	assert.NoError(t, err)
	expect.EQ(t, br.Size(), int64(32))

	pos, err := br.Seek(0, io.SeekEnd)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(32))
	pos, err = br.Seek(100, io.SeekCurrent)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(32))
	pos, err = br.Seek(-100, io.SeekCurrent)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(0))
	pos, err = br.Seek(0, io.SeekStart)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(0))
	_, err = br.Seek(0, -1)
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.EQ(t, s.nGet(), 0)
}

func TestBufferedRewindsSource(t *testing.T) {
	data := testData(100)
	s := newTestServer(data)
	defer s.Close()
	r, err := NewReader(s.URL, DefaultOpts)
	assert.NoError(t, err)
	_, err = r.Seek(50, io.SeekStart)
	assert.NoError(t, err)
	br, err := r.Buffered()
	assert.NoError(t, err)
	got, err := ioutil.ReadAll(br)
	assert.NoError(t, err)
	expect.EQ(t, got, data)
}

func TestBufferedLargeRead(t *testing.T) {
	data := testData(100)
	s := newTestServer(data)
	defer s.Close()
	r, err := NewReader(s.URL, DefaultOpts)
	assert.NoError(t, err)
	br, err := NewBufferedReader(r, 8)
	assert.NoError(t, err)

	buf := make([]byte, 3)
	_, err = io.ReadFull(br, buf)
	assert.NoError(t, err)
	expect.EQ(t, buf, data[:3])
	// Drains the window first, then bypasses it.
	big := make([]byte, 32)
	n, err := br.Read(big)
	assert.NoError(t, err)
	expect.EQ(t, n, 5)
	n, err = br.Read(big)
	assert.NoError(t, err)
	expect.EQ(t, n, 32)
	expect.EQ(t, big, data[8:40])
	pos, _ := br.Seek(0, io.SeekCurrent)
	expect.EQ(t, pos, int64(40))
	// The bypassed bytes never entered the window.
	pos, err = br.Seek(-1, io.SeekCurrent)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(39))
	_, err = io.ReadFull(br, buf[:1])
	assert.NoError(t, err)
	expect.EQ(t, buf[0], data[39])
}
