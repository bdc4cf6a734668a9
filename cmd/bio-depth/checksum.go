// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/depth/depth"
	"github.com/grailbio/depth/httpio"
)

// runSize prints the byte length of path.  For http(s) paths this costs a
// single HEAD request.
func runSize(ctx context.Context, stdout io.Writer, path string, opts httpio.Opts) (err error) {
	f, err := depth.Open(ctx, path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	_, err = fmt.Fprintf(stdout, "%d\n", f.Size())
	return err
}

// runChecksum streams path through seahash and prints
//   size<TAB>hash
// with the hash in hex.  The streamed length must match the probed size.
func runChecksum(ctx context.Context, stdout io.Writer, path string, opts httpio.Opts) (err error) {
	f, err := depth.Open(ctx, path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	h := seahash.New()
	n, err := io.Copy(h, f.Reader())
	if err != nil {
		return err
	}
	if n != f.Size() {
		return errors.E(errors.Integrity, fmt.Sprintf("%s: read %d bytes, expected %d", path, n, f.Size()))
	}
	log.Debug.Printf("checksum: %s: %d bytes", path, n)
	_, err = fmt.Fprintf(stdout, "%d\t%016x\n", n, h.Sum64())
	return err
}
