package cell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildUint(t *testing.T, v uint64, n int) *Cell {
	b := NewBuilder()
	require.NoError(t, b.WriteUint(v, n))
	return b.Build()
}

func TestBagRoundTrip(t *testing.T) {
	c := buildUint(t, 65540, 64)
	data, err := EncodeBag(c)
	require.NoError(t, err)

	got, err := DecodeBag(data)
	require.NoError(t, err)
	require.Equal(t, c.Hash(), got.Hash())
	require.Equal(t, c.BitLen(), got.BitLen())
}

func TestBagRoundTripUnalignedPayload(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 9, 15, 16, 63, 64} {
		c := buildUint(t, 0, n)
		data, err := EncodeBag(c)
		require.NoError(t, err)
		got, err := DecodeBag(data)
		require.NoError(t, err)
		require.Equal(t, n, got.BitLen())
		require.Equal(t, c.Hash(), got.Hash())
	}
}

func TestBagRoundTripTree(t *testing.T) {
	leaf := buildUint(t, 0xff, 9)
	mid := NewBuilder()
	require.NoError(t, mid.WriteUint(7, 16))
	require.NoError(t, mid.WriteRef(leaf))
	root := NewBuilder()
	require.NoError(t, root.WriteUint(1, 64))
	require.NoError(t, root.WriteRef(mid.Build()))
	require.NoError(t, root.WriteRef(leaf))
	c := root.Build()

	data, err := EncodeBag(c)
	require.NoError(t, err)
	got, err := DecodeBag(data)
	require.NoError(t, err)
	require.Equal(t, c.Hash(), got.Hash())
	require.Equal(t, 2, got.RefsCount())
	require.Equal(t, leaf.Hash(), got.Ref(1).Hash())
}

func TestBagDeduplicatesSubtrees(t *testing.T) {
	shared := buildUint(t, 0xdeadbeef, 64)
	single := NewBuilder()
	require.NoError(t, single.WriteRef(shared))
	double := NewBuilder()
	require.NoError(t, double.WriteRef(shared))
	require.NoError(t, double.WriteRef(shared))

	one, err := EncodeBag(single.Build())
	require.NoError(t, err)
	two, err := EncodeBag(double.Build())
	require.NoError(t, err)
	// The shared subtree is stored once, the second link only costs an index.
	require.Less(t, len(two), len(one)+len(one)/2)

	got, err := DecodeBag(two)
	require.NoError(t, err)
	require.Equal(t, got.Ref(0).Hash(), got.Ref(1).Hash())
}

func TestBagChecksumMismatch(t *testing.T) {
	data, err := EncodeBag(buildUint(t, 1, 64))
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	_, err = DecodeBag(data)
	require.ErrorIs(t, err, ErrInvalidChecksum)
}

func TestBagCorruptedBody(t *testing.T) {
	data, err := EncodeBag(buildUint(t, 1, 64))
	require.NoError(t, err)
	data[6] ^= 0x01 // Flip a payload bit, checksum catches it.
	_, err = DecodeBag(data)
	require.ErrorIs(t, err, ErrInvalidChecksum)
}

func TestBagInvalidMagic(t *testing.T) {
	_, err := DecodeBag([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8})
	require.Error(t, err)
}

func TestBagTruncated(t *testing.T) {
	data, err := EncodeBag(buildUint(t, 1, 64))
	require.NoError(t, err)
	_, err = DecodeBag(data[:3])
	require.ErrorIs(t, err, ErrInvalidBag)
}
