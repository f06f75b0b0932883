package cell

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Slice is a read cursor over a cell tree. The bit offset only ever advances;
// once the current payload is exhausted reading continues into linked
// children in link order (pre-order). A Slice is scoped to a single
// invocation and is not safe for concurrent use.
type Slice struct {
	cur    *Cell
	bitPos int
	refPos int
	// pending holds cells to visit after the current subtree, last one is
	// the nearest.
	pending []*Cell
}

// NewSlice returns a read cursor positioned at the first payload bit of c.
func NewSlice(c *Cell) *Slice {
	return &Slice{cur: c}
}

// RemainingBits returns the number of unread bits left in the current
// payload. It doesn't traverse into children, which makes it suitable for
// cheap length preconditions.
func (s *Slice) RemainingBits() int {
	return s.cur.bitLen - s.bitPos
}

// RemainingRefs returns the number of unconsumed links of the current cell.
func (s *Slice) RemainingRefs() int {
	return len(s.cur.refs) - s.refPos
}

// ReadableBits returns the total number of bits reachable from the cursor,
// including the payloads of all linked children left to traverse.
func (s *Slice) ReadableBits() int {
	n := s.RemainingBits()
	for _, r := range s.cur.refs[s.refPos:] {
		n += totalBits(r)
	}
	for _, c := range s.pending {
		n += totalBits(c)
	}
	return n
}

// ReadUint consumes exactly n bits (0 ≤ n ≤ 64) interpreted as a big-endian
// unsigned integer. It fails with ErrUnderflow if fewer than n bits are
// reachable, leaving the cursor in place.
func (s *Slice) ReadUint(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBitLength, n)
	}
	if s.ReadableBits() < n {
		return 0, fmt.Errorf("%w: %d bits requested", ErrUnderflow, n)
	}
	var v uint64
	for i := 0; i < n; i++ {
		v <<= 1
		if s.readBit() {
			v |= 1
		}
	}
	return v, nil
}

// ReadBig consumes exactly n bits (0 ≤ n ≤ 256) interpreted as a big-endian
// unsigned integer.
func (s *Slice) ReadBig(n int) (*uint256.Int, error) {
	if n < 0 || n > 256 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBitLength, n)
	}
	if s.ReadableBits() < n {
		return nil, fmt.Errorf("%w: %d bits requested", ErrUnderflow, n)
	}
	v := new(uint256.Int)
	one := uint256.NewInt(1)
	for i := 0; i < n; i++ {
		v.Lsh(v, 1)
		if s.readBit() {
			v.Or(v, one)
		}
	}
	return v, nil
}

// ReadBool consumes a single bit.
func (s *Slice) ReadBool() (bool, error) {
	if s.ReadableBits() < 1 {
		return false, fmt.Errorf("%w: 1 bit requested", ErrUnderflow)
	}
	return s.readBit(), nil
}

// ReadBytes consumes n*8 bits and returns them as a byte slice.
func (s *Slice) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBitLength, n)
	}
	if s.ReadableBits() < n*8 {
		return nil, fmt.Errorf("%w: %d bytes requested", ErrUnderflow, n)
	}
	b := make([]byte, n)
	for i := 0; i < n*8; i++ {
		if s.readBit() {
			b[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return b, nil
}

// ReadRef consumes the next link of the current cell, removing it from the
// pre-order payload continuation.
func (s *Slice) ReadRef() (*Cell, error) {
	if s.refPos >= len(s.cur.refs) {
		return nil, ErrRefUnderflow
	}
	r := s.cur.refs[s.refPos]
	s.refPos++
	return r, nil
}

// readBit consumes one bit, advancing into the next pre-order cell when the
// current payload is exhausted. Reachability must be checked by the caller.
func (s *Slice) readBit() bool {
	for s.bitPos >= s.cur.bitLen {
		s.advance()
	}
	v := s.cur.bits[s.bitPos/8]>>(7-uint(s.bitPos%8))&1 == 1
	s.bitPos++
	return v
}

// advance moves the cursor to the next cell in pre-order.
func (s *Slice) advance() {
	if s.refPos < len(s.cur.refs) {
		next := s.cur.refs[s.refPos]
		for i := len(s.cur.refs) - 1; i > s.refPos; i-- {
			s.pending = append(s.pending, s.cur.refs[i])
		}
		s.cur = next
	} else {
		s.cur = s.pending[len(s.pending)-1]
		s.pending = s.pending[:len(s.pending)-1]
	}
	s.bitPos = 0
	s.refPos = 0
}

func totalBits(c *Cell) int {
	n := c.bitLen
	for _, r := range c.refs {
		n += totalBits(r)
	}
	return n
}
