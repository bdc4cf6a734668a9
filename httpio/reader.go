// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package httpio emulates a seekable file on top of an HTTP resource that
// supports HEAD and byte-range GET requests.
//
// Neither Reader nor BufferedReader is safe for concurrent use.  Workers that
// need remote data at the same time must each open their own reader.
package httpio

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Opts configures a Reader.
type Opts struct {
	// Client issues the HEAD and GET requests.  A fresh http.Client is used if
	// nil.
	Client *http.Client
	// BufferSize is the read-ahead capacity used by Buffered().
	BufferSize int
}

// DefaultBufferSize is the read-ahead capacity of a BufferedReader.
const DefaultBufferSize = 8192

// DefaultOpts is the default Reader configuration.
var DefaultOpts = Opts{
	BufferSize: DefaultBufferSize,
}

// Reader serves an HTTP resource as an io.ReadSeeker.  Each Read issues one
// range request starting at the current cursor; Seek only moves the cursor.
type Reader struct {
	client     *http.Client
	url        string
	bufferSize int

	size   int64 // constant after NewReader
	cursor int64 // 0 <= cursor <= size
}

var _ io.ReadSeeker = (*Reader)(nil)

// NewReader resolves url and probes its size with a HEAD request.  It fails
// with an errors.Net error if the probe itself fails, and with an
// errors.Invalid error if the response carries no usable Content-Length.
func NewReader(url string, opts Opts) (*Reader, error) {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	r := &Reader{
		client:     client,
		url:        url,
		bufferSize: opts.BufferSize,
	}
	req, err := r.newRequest(http.MethodHead)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.E(errors.Net, err, "HEAD", url)
	}
	resp.Body.Close() // nolint: errcheck
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.E(errors.Net, fmt.Sprintf("HEAD %s: unexpected status %s", url, resp.Status))
	}
	if r.size, err = parseSize(resp.Header.Get("Content-Length")); err != nil {
		return nil, errors.E(err, "HEAD", url)
	}
	log.Debug.Printf("httpio: %s: %d bytes", url, r.size)
	return r, nil
}

func parseSize(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errors.E(errors.Invalid, "missing Content-Length")
	}
	size, err := strconv.ParseUint(text, 10, 63)
	if err != nil {
		return 0, errors.E(errors.Invalid, err, "bad Content-Length")
	}
	return int64(size), nil
}

func (r *Reader) newRequest(method string) (*http.Request, error) {
	req, err := http.NewRequest(method, r.url, nil)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, method, r.url)
	}
	req.Header.Set("Connection", "keep-alive")
	return req, nil
}

// URL returns the location the reader was opened on.
func (r *Reader) URL() string { return r.url }

// Size returns the byte length of the resource, as reported by the probe.
func (r *Reader) Size() int64 { return r.size }

// lastByte returns the inclusive upper bound of a read of n bytes at the
// current cursor.  The result is below cursor iff the cursor is at the end of
// the resource.
func (r *Reader) lastByte(n int) int64 {
	last := r.cursor + int64(n) - 1
	if last > r.size-1 {
		last = r.size - 1
	}
	return last
}

// Read implements io.Reader.  It returns io.EOF without touching the network
// once the cursor reaches the end of the resource.  A response shorter than
// the requested range is not an error; the bytes actually received are
// returned.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	last := r.lastByte(len(p))
	if r.cursor > last {
		return 0, io.EOF
	}
	req, err := r.newRequest(http.MethodGet)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.cursor, last))
	log.Debug.Printf("httpio: GET %s bytes=%d-%d", r.url, r.cursor, last)
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, errors.E(errors.Net, err, "GET", r.url)
	}
	defer resp.Body.Close() // nolint: errcheck
	switch {
	case resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK && r.cursor == 0:
		// The server ignored Range, but the body still starts where we are.
	case resp.StatusCode == http.StatusOK:
		return 0, errors.E(errors.Net, fmt.Sprintf("GET %s: range requests not supported", r.url))
	default:
		return 0, errors.E(errors.Net, fmt.Sprintf("GET %s bytes=%d-%d: unexpected status %s", r.url, r.cursor, last, resp.Status))
	}
	n, err := io.ReadFull(resp.Body, p[:last-r.cursor+1])
	r.cursor += int64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
		if n == 0 {
			err = errors.E(errors.Net, fmt.Sprintf("GET %s: empty response at offset %d of %d", r.url, r.cursor, r.size))
		}
	} else if err != nil {
		err = errors.E(errors.Net, err, "GET", r.url)
	}
	return n, err
}

// Seek implements io.Seeker.  The resulting cursor saturates at 0 and at
// Size(); seeking never issues a request.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
	case io.SeekEnd:
		r.cursor = r.size
	case io.SeekStart:
		r.cursor = 0
	default:
		return r.cursor, errors.E(errors.Invalid, fmt.Sprintf("httpio: invalid whence %d", whence))
	}
	if offset > 0 {
		if offset > r.size-r.cursor {
			r.cursor = r.size
		} else {
			r.cursor += offset
		}
	} else if offset < -r.cursor {
		r.cursor = 0
	} else {
		r.cursor += offset
	}
	return r.cursor, nil
}

// Buffered wraps r in a BufferedReader with the configured read-ahead size.
func (r *Reader) Buffered() (*BufferedReader, error) {
	return NewBufferedReader(r, r.bufferSize)
}
