// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package depth reads per-base depth data and serves it as run-length encoded
// observations for the task package.
package depth

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/depth/httpio"
)

// File is an opened depth source.  Like the readers it wraps, it is not safe
// for concurrent use.
type File struct {
	path  string
	r     io.ReadSeeker
	size  int64
	close func(ctx context.Context) error
}

// IsRemote reports whether path is served over HTTP.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Open opens path for reading.  http(s) URLs are read through an
// httpio.BufferedReader configured by opts; every other path goes through
// grailbio/base/file.
func Open(ctx context.Context, path string, opts httpio.Opts) (*File, error) {
	if IsRemote(path) {
		r, err := httpio.NewReader(path, opts)
		if err != nil {
			return nil, err
		}
		br, err := r.Buffered()
		if err != nil {
			return nil, err
		}
		log.Debug.Printf("depth.Open: %s: remote, %d bytes", path, br.Size())
		return &File{
			path:  path,
			r:     br,
			size:  br.Size(),
			close: func(context.Context) error { return nil },
		}, nil
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	info, err := in.Stat(ctx)
	if err != nil {
		_ = in.Close(ctx)
		return nil, err
	}
	return &File{
		path:  path,
		r:     in.Reader(ctx),
		size:  info.Size(),
		close: in.Close,
	}, nil
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// Size returns the length of the file in bytes.
func (f *File) Size() int64 { return f.size }

// Reader returns the file's byte stream.
func (f *File) Reader() io.ReadSeeker { return f.r }

// Close releases the file.
func (f *File) Close(ctx context.Context) error { return f.close(ctx) }

// Load opens a bedGraph file and indexes it.
func Load(ctx context.Context, path string, opts httpio.Opts) (idx *Index, err error) {
	f, err := Open(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if idx, err = ReadBedGraph(f.Reader()); err != nil {
		return nil, err
	}
	log.Printf("depth.Load: %s: %d runs on %d chromosomes", path, idx.NumRuns(), len(idx.Chroms()))
	return idx, nil
}
