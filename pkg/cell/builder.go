package cell

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Builder is a write cursor accumulating payload bits and child links for a
// new cell. Writes past the MaxBits/MaxRefs ceilings fail, they are never
// silently truncated. A Builder is not safe for concurrent use.
type Builder struct {
	bits   []byte
	bitLen int
	refs   []*Cell
}

// NewBuilder returns a new empty write cursor.
func NewBuilder() *Builder {
	return &Builder{
		bits: make([]byte, 0, (MaxBits+7)/8),
	}
}

// BitsWritten returns the number of payload bits accumulated so far.
func (b *Builder) BitsWritten() int {
	return b.bitLen
}

// BitsLeft returns the remaining payload capacity in bits.
func (b *Builder) BitsLeft() int {
	return MaxBits - b.bitLen
}

// RefsWritten returns the number of child links accumulated so far.
func (b *Builder) RefsWritten() int {
	return len(b.refs)
}

// WriteUint appends the n lowest bits of v as a big-endian unsigned integer.
// It fails with ErrCapacity if the cell ceiling would be exceeded and with
// ErrValueOutOfRange if v doesn't fit into n bits.
func (b *Builder) WriteUint(v uint64, n int) error {
	if n < 0 || n > 64 {
		return fmt.Errorf("%w: %d", ErrInvalidBitLength, n)
	}
	if n < 64 && v>>uint(n) != 0 {
		return fmt.Errorf("%w: %d doesn't fit %d bits", ErrValueOutOfRange, v, n)
	}
	if b.bitLen+n > MaxBits {
		return fmt.Errorf("%w: %d+%d bits", ErrCapacity, b.bitLen, n)
	}
	for i := n - 1; i >= 0; i-- {
		b.appendBit(v>>uint(i)&1 == 1)
	}
	return nil
}

// WriteBig appends the n lowest bits of v as a big-endian unsigned integer,
// n can be up to 256.
func (b *Builder) WriteBig(v *uint256.Int, n int) error {
	if n < 0 || n > 256 {
		return fmt.Errorf("%w: %d", ErrInvalidBitLength, n)
	}
	if v.BitLen() > n {
		return fmt.Errorf("%w: value of %d bits doesn't fit %d bits", ErrValueOutOfRange, v.BitLen(), n)
	}
	if b.bitLen+n > MaxBits {
		return fmt.Errorf("%w: %d+%d bits", ErrCapacity, b.bitLen, n)
	}
	be := v.Bytes32()
	for i := 256 - n; i < 256; i++ {
		b.appendBit(be[i/8]>>(7-uint(i%8))&1 == 1)
	}
	return nil
}

// WriteBool appends a single bit.
func (b *Builder) WriteBool(v bool) error {
	if b.bitLen+1 > MaxBits {
		return fmt.Errorf("%w: %d+1 bits", ErrCapacity, b.bitLen)
	}
	b.appendBit(v)
	return nil
}

// WriteBytes appends the given bytes as len(p)*8 payload bits.
func (b *Builder) WriteBytes(p []byte) error {
	if b.bitLen+len(p)*8 > MaxBits {
		return fmt.Errorf("%w: %d+%d bits", ErrCapacity, b.bitLen, len(p)*8)
	}
	if b.bitLen%8 == 0 {
		b.bits = append(b.bits, p...)
		b.bitLen += len(p) * 8
		return nil
	}
	for _, v := range p {
		for i := 7; i >= 0; i-- {
			b.appendBit(v>>uint(i)&1 == 1)
		}
	}
	return nil
}

// WriteRef appends a link to the given cell, failing with ErrRefCapacity
// past the MaxRefs ceiling.
func (b *Builder) WriteRef(c *Cell) error {
	if len(b.refs) >= MaxRefs {
		return ErrRefCapacity
	}
	b.refs = append(b.refs, c)
	return nil
}

// Build finalizes the accumulated payload and links into an immutable cell.
// The builder can be reused afterwards, the produced cell is independent
// from it.
func (b *Builder) Build() *Cell {
	c := &Cell{
		bits:   make([]byte, len(b.bits)),
		bitLen: b.bitLen,
		refs:   make([]*Cell, len(b.refs)),
	}
	copy(c.bits, b.bits)
	copy(c.refs, b.refs)
	c.finalize()
	return c
}

func (b *Builder) appendBit(v bool) {
	if b.bitLen%8 == 0 {
		b.bits = append(b.bits, 0)
	}
	if v {
		b.bits[b.bitLen/8] |= 1 << (7 - uint(b.bitLen%8))
	}
	b.bitLen++
}
