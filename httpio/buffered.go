// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package httpio

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// BufferedReader adds a read-ahead window to a Reader.  It tracks its own
// absolute position, which runs behind the inner cursor by the number of
// unread bytes in the window.  Seeks that land inside the window are served
// without a new range request.
type BufferedReader struct {
	src *Reader
	buf []byte
	// buf[r:w] holds unread bytes; the byte at buf[w] would be read from
	// src.cursor.
	r, w int
	err  error // deferred error from the last fill
	pos  int64
}

var _ io.ReadSeeker = (*BufferedReader)(nil)

// NewBufferedReader rewinds src and wraps it with a read-ahead window of
// the given size (DefaultBufferSize if size <= 0).
func NewBufferedReader(src *Reader, size int) (*BufferedReader, error) {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return &BufferedReader{src: src, buf: make([]byte, size)}, nil
}

// Size returns the byte length of the underlying resource.
func (b *BufferedReader) Size() int64 { return b.src.size }

// Read implements io.Reader.
func (b *BufferedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.r == b.w {
		if b.err != nil {
			err := b.err
			b.err = nil
			return 0, err
		}
		if len(p) >= len(b.buf) {
			// Large read; skip the copy through buf.  The window no longer
			// ends at the source cursor, so it is dropped.
			b.r, b.w = 0, 0
			n, err := b.src.Read(p)
			b.pos += int64(n)
			return n, err
		}
		n, err := b.src.Read(b.buf)
		b.r, b.w = 0, n
		if n == 0 {
			return 0, err
		}
		b.err = err
	}
	n := copy(p, b.buf[b.r:b.w])
	b.r += n
	b.pos += int64(n)
	return n, nil
}

// Seek implements io.Seeker.  The offset is turned into a delta from the
// tracked position and applied with seekRelative.
func (b *BufferedReader) Seek(offset int64, whence int) (int64, error) {
	var delta int64
	switch whence {
	case io.SeekCurrent:
		delta = offset
	case io.SeekEnd:
		delta = b.src.size + offset - b.pos
	case io.SeekStart:
		delta = offset - b.pos
	default:
		return b.pos, errors.E(errors.Invalid, fmt.Sprintf("httpio: invalid whence %d", whence))
	}
	return b.seekRelative(delta)
}

// seekRelative moves the position by delta, keeping the window if the target
// is still inside it.  Otherwise the window is dropped and the inner cursor
// is moved to the target, so the next read issues a fresh range request.
func (b *BufferedReader) seekRelative(delta int64) (int64, error) {
	if delta >= -int64(b.r) && delta <= int64(b.w-b.r) {
		b.r += int(delta)
		b.pos += delta
		return b.pos, nil
	}
	// The inner cursor is ahead of pos by the unread part of the window.
	pos, err := b.src.Seek(delta-int64(b.w-b.r), io.SeekCurrent)
	if err != nil {
		return b.pos, err
	}
	log.Debug.Printf("httpio: %s: seek %d -> %d outside read-ahead window", b.src.url, b.pos, pos)
	b.r, b.w, b.err = 0, 0, nil
	b.pos = pos
	return b.pos, nil
}
