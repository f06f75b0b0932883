/*
Package cell implements the bounded-cell binary format used for both the
persisted counter state and inbound message bodies. A cell carries up to
MaxBits bits of payload and up to MaxRefs links to child cells, it's the only
wire/storage representation in the whole system. Cells are immutable once
built, Builder produces them and Slice consumes them.
*/
package cell

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/dankorotin/countergo/pkg/util"
)

const (
	// MaxBits is the payload capacity of a single cell in bits.
	MaxBits = 1023
	// MaxRefs is the maximum number of child links a cell can carry.
	MaxRefs = 4
)

// Codec errors. Read-side underflows and write-side capacity overruns are
// programming-contract violations for the counter core (it always works with
// fixed 64-bit payloads), but they're live checked conditions of the codec.
var (
	// ErrUnderflow is returned when a read needs more bits than reachable
	// from the cursor.
	ErrUnderflow = errors.New("cell underflow")
	// ErrRefUnderflow is returned when a read needs more references than
	// the current cell has left.
	ErrRefUnderflow = errors.New("cell reference underflow")
	// ErrCapacity is returned when a write would exceed MaxBits.
	ErrCapacity = errors.New("cell capacity exceeded")
	// ErrRefCapacity is returned when a cell link would exceed MaxRefs.
	ErrRefCapacity = errors.New("cell reference capacity exceeded")
	// ErrValueOutOfRange is returned when a value doesn't fit into the
	// requested bit width.
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrInvalidBitLength is returned for bit widths outside of what the
	// called codec primitive supports.
	ErrInvalidBitLength = errors.New("invalid bit length")
)

// Cell is an immutable bounded node: up to MaxBits bits of payload plus up to
// MaxRefs links to child cells. Cells are created via Builder and are never
// mutated afterwards, a new state is always a new cell.
type Cell struct {
	bits   []byte
	bitLen int
	refs   []*Cell
	hash   util.Uint256
	depth  uint16
}

// BitLen returns the payload length in bits.
func (c *Cell) BitLen() int {
	return c.bitLen
}

// RefsCount returns the number of child links.
func (c *Cell) RefsCount() int {
	return len(c.refs)
}

// Ref returns the i-th child link.
func (c *Cell) Ref(i int) *Cell {
	return c.refs[i]
}

// Payload returns a copy of the payload bytes with the last byte padded
// with zero bits if the bit length is not a multiple of eight.
func (c *Cell) Payload() []byte {
	p := make([]byte, len(c.bits))
	copy(p, c.bits)
	return p
}

// Depth returns the cell tree depth, zero for a leaf.
func (c *Cell) Depth() uint16 {
	return c.depth
}

// Hash returns the representation hash of the cell. It's computed over the
// two descriptor bytes, the completion-tagged payload and the depths and
// hashes of all children, so equal hashes mean equal subtrees.
func (c *Cell) Hash() util.Uint256 {
	return c.hash
}

// BeginRead returns a new read cursor positioned at the first payload bit.
func (c *Cell) BeginRead() *Slice {
	return NewSlice(c)
}

// descriptors returns the d1/d2 descriptor bytes of the standard cell
// representation: d1 is the reference count, d2 encodes the payload length
// as floor(bits/8)+ceil(bits/8) (an odd d2 therefore marks an incomplete
// trailing byte).
func (c *Cell) descriptors() (byte, byte) {
	return byte(len(c.refs)), byte(c.bitLen/8 + (c.bitLen+7)/8)
}

// paddedPayload returns the payload padded to a whole number of bytes with a
// completion tag: a single one-bit right after the payload, zeroes after it.
func (c *Cell) paddedPayload() []byte {
	p := c.Payload()
	if c.bitLen%8 != 0 {
		p[len(p)-1] |= 1 << (7 - uint(c.bitLen%8))
	}
	return p
}

// finalize computes and caches the depth and representation hash, it must be
// called exactly once when the cell is built.
func (c *Cell) finalize() {
	for _, r := range c.refs {
		if r.depth >= c.depth {
			c.depth = r.depth + 1
		}
	}

	h := sha256.New()
	d1, d2 := c.descriptors()
	h.Write([]byte{d1, d2})
	h.Write(c.paddedPayload())
	var depth [2]byte
	for _, r := range c.refs {
		binary.BigEndian.PutUint16(depth[:], r.depth)
		h.Write(depth[:])
	}
	for _, r := range c.refs {
		h.Write(r.hash.BytesBE())
	}
	c.hash, _ = util.Uint256DecodeBytesBE(h.Sum(nil))
}
