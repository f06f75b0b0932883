package io

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testPair struct {
	Key   uint32
	Value uint64
}

func (p *testPair) EncodeBinary(w *BinWriter) {
	w.WriteU32LE(p.Key)
	w.WriteU64LE(p.Value)
}

func (p *testPair) DecodeBinary(r *BinReader) {
	p.Key = r.ReadU32LE()
	p.Value = r.ReadU64LE()
}

func TestWriteReadArray(t *testing.T) {
	// Value slices work even though the methods are on the pointer type.
	pairs := []testPair{{1, 100}, {2, 200}, {3, 300}}

	w := NewBufBinWriter()
	WriteArray(w.BinWriter, pairs)
	require.NoError(t, w.Err)

	r := NewBinReaderFromBuf(w.Bytes())
	var actual []testPair
	ReadArray(r, &actual)
	require.NoError(t, r.Err)
	require.Equal(t, pairs, actual)
}

func TestWriteArrayEmpty(t *testing.T) {
	w := NewBufBinWriter()
	WriteArray(w.BinWriter, []testPair(nil))
	require.NoError(t, w.Err)
	require.Equal(t, []byte{0}, w.Bytes())
}
