package cell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 5, 65535, 65540, 1 << 32, 1 << 63, 1<<64 - 1} {
		b := NewBuilder()
		require.NoError(t, b.WriteUint(v, 64))
		s := b.Build().BeginRead()
		got, err := s.ReadUint(64)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestUintNarrowWidths(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.WriteUint(0b101, 3))
	require.NoError(t, b.WriteUint(0xbeef, 16))
	require.NoError(t, b.WriteUint(0, 0))
	require.NoError(t, b.WriteUint(1, 1))
	c := b.Build()
	require.Equal(t, 20, c.BitLen())

	s := c.BeginRead()
	v, err := s.ReadUint(3)
	require.NoError(t, err)
	require.EqualValues(t, 0b101, v)
	v, err = s.ReadUint(16)
	require.NoError(t, err)
	require.EqualValues(t, 0xbeef, v)
	v, err = s.ReadUint(0)
	require.NoError(t, err)
	require.EqualValues(t, 0, v)
	v, err = s.ReadUint(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
	require.Equal(t, 0, s.RemainingBits())
}

func TestWriteUintErrors(t *testing.T) {
	b := NewBuilder()
	require.ErrorIs(t, b.WriteUint(2, 1), ErrValueOutOfRange)
	require.ErrorIs(t, b.WriteUint(1<<16, 16), ErrValueOutOfRange)
	require.ErrorIs(t, b.WriteUint(0, -1), ErrInvalidBitLength)
	require.ErrorIs(t, b.WriteUint(0, 65), ErrInvalidBitLength)
	require.Equal(t, 0, b.BitsWritten())
}

func TestBuilderCapacity(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 15; i++ {
		require.NoError(t, b.WriteUint(1<<64-1, 64))
	}
	require.Equal(t, 960, b.BitsWritten())
	require.NoError(t, b.WriteUint(0, 63))
	require.Equal(t, MaxBits, b.BitsWritten())
	require.ErrorIs(t, b.WriteBool(true), ErrCapacity)
	require.ErrorIs(t, b.WriteUint(0, 1), ErrCapacity)
	require.ErrorIs(t, b.WriteBytes([]byte{0}), ErrCapacity)

	c := b.Build()
	require.Equal(t, MaxBits, c.BitLen())
}

func TestRefCapacity(t *testing.T) {
	leaf := NewBuilder().Build()
	b := NewBuilder()
	for i := 0; i < MaxRefs; i++ {
		require.NoError(t, b.WriteRef(leaf))
	}
	require.ErrorIs(t, b.WriteRef(leaf), ErrRefCapacity)
	require.Equal(t, MaxRefs, b.Build().RefsCount())
}

func TestSliceUnderflow(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.WriteUint(5, 15))
	s := b.Build().BeginRead()
	require.Equal(t, 15, s.RemainingBits())

	_, err := s.ReadUint(16)
	require.ErrorIs(t, err, ErrUnderflow)
	// A failed read must not advance the cursor.
	require.Equal(t, 15, s.RemainingBits())

	v, err := s.ReadUint(15)
	require.NoError(t, err)
	require.EqualValues(t, 5, v)
	_, err = s.ReadUint(1)
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestSliceChildContinuation(t *testing.T) {
	child1 := NewBuilder()
	require.NoError(t, child1.WriteUint(0xbb, 8))
	child2 := NewBuilder()
	require.NoError(t, child2.WriteUint(0xcc, 8))

	root := NewBuilder()
	require.NoError(t, root.WriteUint(0xaa, 8))
	require.NoError(t, root.WriteRef(child1.Build()))
	require.NoError(t, root.WriteRef(child2.Build()))

	s := root.Build().BeginRead()
	require.Equal(t, 8, s.RemainingBits())
	require.Equal(t, 24, s.ReadableBits())

	v, err := s.ReadUint(24)
	require.NoError(t, err)
	require.EqualValues(t, 0xaabbcc, v)
}

func TestSliceNestedContinuation(t *testing.T) {
	// root(8 bits) -> a(8 bits) -> b(8 bits), plus c(8 bits) linked from
	// root: pre-order reads root, a, b, c.
	b := NewBuilder()
	require.NoError(t, b.WriteUint(0x03, 8))
	a := NewBuilder()
	require.NoError(t, a.WriteUint(0x02, 8))
	require.NoError(t, a.WriteRef(b.Build()))
	c := NewBuilder()
	require.NoError(t, c.WriteUint(0x04, 8))
	root := NewBuilder()
	require.NoError(t, root.WriteUint(0x01, 8))
	require.NoError(t, root.WriteRef(a.Build()))
	require.NoError(t, root.WriteRef(c.Build()))

	s := root.Build().BeginRead()
	v, err := s.ReadUint(32)
	require.NoError(t, err)
	require.EqualValues(t, 0x01020304, v)
	_, err = s.ReadUint(1)
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestReadRef(t *testing.T) {
	child := NewBuilder()
	require.NoError(t, child.WriteUint(0xff, 8))
	root := NewBuilder()
	require.NoError(t, root.WriteUint(0x01, 8))
	require.NoError(t, root.WriteRef(child.Build()))

	s := root.Build().BeginRead()
	require.Equal(t, 1, s.RemainingRefs())
	r, err := s.ReadRef()
	require.NoError(t, err)
	require.Equal(t, 8, r.BitLen())
	require.Equal(t, 0, s.RemainingRefs())
	_, err = s.ReadRef()
	require.ErrorIs(t, err, ErrRefUnderflow)

	// A consumed link is removed from the payload continuation.
	v, err := s.ReadUint(8)
	require.NoError(t, err)
	require.EqualValues(t, 0x01, v)
	_, err = s.ReadUint(1)
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestReadWriteBytes(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	b := NewBuilder()
	require.NoError(t, b.WriteBool(true)) // Knock byte alignment off.
	require.NoError(t, b.WriteBytes(payload))
	s := b.Build().BeginRead()
	v, err := s.ReadBool()
	require.NoError(t, err)
	require.True(t, v)
	got, err := s.ReadBytes(4)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestHashIdentity(t *testing.T) {
	mk := func(v uint64) *Cell {
		b := NewBuilder()
		require.NoError(t, b.WriteUint(v, 64))
		return b.Build()
	}
	require.Equal(t, mk(42).Hash(), mk(42).Hash())
	require.NotEqual(t, mk(42).Hash(), mk(43).Hash())

	withRef := NewBuilder()
	require.NoError(t, withRef.WriteUint(42, 64))
	require.NoError(t, withRef.WriteRef(mk(7)))
	c := withRef.Build()
	require.NotEqual(t, mk(42).Hash(), c.Hash())
	require.EqualValues(t, 1, c.Depth())
	require.EqualValues(t, 0, mk(42).Depth())
}
