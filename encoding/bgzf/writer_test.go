package bgzf

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	// Create random bytes.
	for _, length := range []int{0, 1, 100, 65279, 65280, 65281, 500000} {
		t.Logf("length: %d", length)
		input := make([]byte, length)
		n, err := rand.Read(input)
		require.Nil(t, err)
		assert.Equal(t, length, n)

		// Write bgzf
		var buf bytes.Buffer
		w, err := NewWriter(&buf, 1)
		require.Nil(t, err)
		n, err = w.Write(input)
		assert.Nil(t, err)
		assert.Equal(t, length, n)
		err = w.Close()
		assert.Nil(t, err)
		assert.True(t, bytes.HasSuffix(buf.Bytes(), terminator))

		// Verify output
		r, err := gzip.NewReader(&buf)
		require.Nil(t, err)
		actual, err := ioutil.ReadAll(r)
		require.Nil(t, err)
		assert.Equal(t, length, len(actual))
		assert.Equal(t, 0, bytes.Compare(input, actual))
	}
}

// Every block's BSIZE field must lead to the start of the next block.
func TestBlockSizes(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriterParams(&buf, gzip.BestSpeed, 5)
	require.Nil(t, err)
	_, err = w.Write([]byte("ABCDEFGHIJKL"))
	require.Nil(t, err)
	require.Nil(t, w.Close())

	b := buf.Bytes()
	nBlocks := 0
	for off := 0; off < len(b); nBlocks++ {
		require.Equal(t, bgzfExtraPrefix[:], b[off+extraOffset:off+extraOffset+len(bgzfExtraPrefix)])
		bsize := int(binary.LittleEndian.Uint16(b[off+extraOffset+4:]))
		off += bsize + 1
		require.True(t, off <= len(b))
	}
	// ABCDE, FGHIJ, KL, terminator.
	assert.Equal(t, 4, nBlocks)
}

func TestInvalidBlockSize(t *testing.T) {
	_, err := NewWriterParams(ioutil.Discard, 1, 0)
	assert.Error(t, err)
	_, err = NewWriterParams(ioutil.Discard, 1, MaxUncompressedBlockSize+1)
	assert.Error(t, err)
}
