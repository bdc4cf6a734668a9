package interval

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		// These simple loops are better than the standard library string-split
		// functions when only the first few tokens are needed.
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// BEDOpts defines behavior of this package's BED-loading functions.
type BEDOpts struct {
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

var (
	bedComment = []byte("#")
	bedTrack   = []byte("track")
	bedBrowser = []byte("browser")
)

// isBEDHeader reports whether line is a comment or a UCSC track/browser line.
func isBEDHeader(firstToken []byte) bool {
	return bytes.HasPrefix(firstToken, bedComment) ||
		bytes.Equal(firstToken, bedTrack) ||
		bytes.Equal(firstToken, bedBrowser)
}

// ReadBED returns the first three columns of every interval line of a BED
// stream, in file order.  Blank lines, comments and track/browser lines are
// skipped.  Columns past the third are ignored.
func ReadBED(reader io.Reader, opts BEDOpts) ([]Entry, error) {
	var startSubtract uint64
	if opts.OneBasedInput {
		startSubtract++
	}
	scanner := bufio.NewScanner(reader)
	var (
		tokens  [3][]byte
		entries []Entry
	)
	for lineIdx := 1; scanner.Scan(); lineIdx++ {
		nToken := getTokens(tokens[:], scanner.Bytes())
		if nToken == 0 || isBEDHeader(tokens[0]) {
			continue
		}
		if nToken != 3 {
			return nil, errors.Errorf("interval.ReadBED: line %d has fewer tokens than expected", lineIdx)
		}
		start, err := strconv.ParseUint(gunsafe.BytesToString(tokens[1]), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "interval.ReadBED: line %d", lineIdx)
		}
		if start < startSubtract {
			return nil, errors.Errorf("interval.ReadBED: negative start coordinate %s on line %d", tokens[1], lineIdx)
		}
		start -= startSubtract
		end, err := strconv.ParseUint(gunsafe.BytesToString(tokens[2]), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "interval.ReadBED: line %d", lineIdx)
		}
		if end < start || end >= PosTypeMax {
			return nil, errors.Errorf("interval.ReadBED: invalid coordinate pair [%d, %d) on line %d", start, end, lineIdx)
		}
		entries = append(entries, Entry{
			ChrName: string(tokens[0]),
			Start0:  PosType(start),
			End:     PosType(end),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "interval.ReadBED")
	}
	return entries, nil
}

// ReadBEDFromPath is a wrapper for ReadBED that takes a path instead of an
// io.Reader.  Paths ending in .gz are decompressed.
func ReadBEDFromPath(ctx context.Context, path string, opts BEDOpts) (entries []Entry, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	return ReadBED(reader, opts)
}
