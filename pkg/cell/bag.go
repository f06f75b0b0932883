package cell

import (
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/dankorotin/countergo/pkg/io"
)

// Magic is the bag-of-cells container prefix.
const Magic uint32 = 0x62616731 // "bag1"

// Bag container errors.
var (
	// ErrInvalidMagic is returned when the container prefix doesn't match.
	ErrInvalidMagic = errors.New("invalid bag magic")
	// ErrInvalidChecksum is returned when the CRC-32C trailer doesn't match
	// the container contents.
	ErrInvalidChecksum = errors.New("invalid bag checksum")
	// ErrInvalidBag is returned for structurally broken containers.
	ErrInvalidBag = errors.New("invalid bag structure")
)

// MaxBagCells limits the number of cells in a single decoded bag.
const MaxBagCells = 0x10000

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// flatCell is a cell as serialized inside a bag, with links replaced by
// indices into the bag.
type flatCell struct {
	d1      byte
	d2      byte
	payload []byte
	refs    []uint64
}

// EncodeBag serializes the cell tree rooted at c into the bag-of-cells
// container: a magic prefix, cells in pre-order with parents before their
// first occurrence of children, duplicate subtrees stored once (deduplicated
// by representation hash) and a CRC-32C trailer. It's the single wire form
// for cell trees leaving the process (storage, snapshots, RPC).
func EncodeBag(c *Cell) ([]byte, error) {
	var (
		order   []*Cell
		indices = make(map[string]uint64)
	)
	var visit func(c *Cell)
	visit = func(c *Cell) {
		key := string(c.hash.BytesBE())
		if _, ok := indices[key]; ok {
			return
		}
		indices[key] = uint64(len(order))
		order = append(order, c)
		for _, r := range c.refs {
			visit(r)
		}
	}
	visit(c)

	w := io.NewBufBinWriter()
	w.WriteU32BE(Magic)
	w.WriteVarUint(uint64(len(order)))
	for _, c := range order {
		d1, d2 := c.descriptors()
		w.WriteB(d1)
		w.WriteB(d2)
		w.WriteBytes(c.paddedPayload())
		for _, r := range c.refs {
			w.WriteVarUint(indices[string(r.hash.BytesBE())])
		}
	}
	if w.Err != nil {
		return nil, w.Err
	}
	body := w.Bytes()
	sum := crc32.Checksum(body, castagnoli)

	out := make([]byte, len(body)+4)
	copy(out, body)
	out[len(body)] = byte(sum)
	out[len(body)+1] = byte(sum >> 8)
	out[len(body)+2] = byte(sum >> 16)
	out[len(body)+3] = byte(sum >> 24)
	return out, nil
}

// DecodeBag deserializes a bag-of-cells container produced by EncodeBag and
// returns the root cell (the first one in the bag).
func DecodeBag(data []byte) (*Cell, error) {
	if len(data) < 4+1+4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBag, len(data))
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	sum := crc32.Checksum(body, castagnoli)
	got := uint32(trailer[0]) | uint32(trailer[1])<<8 | uint32(trailer[2])<<16 | uint32(trailer[3])<<24
	if sum != got {
		return nil, ErrInvalidChecksum
	}

	r := io.NewBinReaderFromBuf(body)
	if m := r.ReadU32BE(); m != Magic {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidMagic, m)
	}
	count := r.ReadVarUint()
	if count == 0 || count > MaxBagCells {
		return nil, fmt.Errorf("%w: %d cells", ErrInvalidBag, count)
	}

	flat := make([]flatCell, count)
	for i := range flat {
		fc := &flat[i]
		fc.d1 = r.ReadB()
		fc.d2 = r.ReadB()
		if int(fc.d1) > MaxRefs {
			return nil, fmt.Errorf("%w: cell %d has %d refs", ErrInvalidBag, i, fc.d1)
		}
		fc.payload = make([]byte, (int(fc.d2)+1)/2)
		r.ReadBytes(fc.payload)
		fc.refs = make([]uint64, fc.d1)
		for j := range fc.refs {
			fc.refs[j] = r.ReadVarUint()
			if fc.refs[j] >= count || fc.refs[j] == uint64(i) {
				return nil, fmt.Errorf("%w: cell %d links to %d", ErrInvalidBag, i, fc.refs[j])
			}
		}
	}
	if r.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBag, r.Err)
	}
	if l, err := r.Len(); err == nil && l != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidBag, l)
	}

	cells := make([]*Cell, count)
	building := make([]bool, count)
	var build func(i uint64) (*Cell, error)
	build = func(i uint64) (*Cell, error) {
		if cells[i] != nil {
			return cells[i], nil
		}
		if building[i] {
			return nil, fmt.Errorf("%w: link cycle through cell %d", ErrInvalidBag, i)
		}
		building[i] = true
		fc := flat[i]
		bitLen, bits, err := unpadPayload(fc.d2, fc.payload)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		c := &Cell{bits: bits, bitLen: bitLen, refs: make([]*Cell, len(fc.refs))}
		for j, ri := range fc.refs {
			c.refs[j], err = build(ri)
			if err != nil {
				return nil, err
			}
		}
		c.finalize()
		cells[i] = c
		return c, nil
	}
	for i := range flat {
		if _, err := build(uint64(i)); err != nil {
			return nil, err
		}
	}
	return cells[0], nil
}

// unpadPayload recovers the exact bit length and payload bytes from the d2
// descriptor and the completion-tagged payload.
func unpadPayload(d2 byte, payload []byte) (int, []byte, error) {
	bits := make([]byte, len(payload))
	copy(bits, payload)
	bitLen := int(d2) / 2 * 8
	if d2%2 != 0 {
		if len(payload) == 0 {
			return 0, nil, ErrInvalidBag
		}
		last := payload[len(payload)-1]
		if last == 0 {
			return 0, nil, fmt.Errorf("%w: missing completion tag", ErrInvalidBag)
		}
		tag := 0
		for last&1 == 0 {
			last >>= 1
			tag++
		}
		bitLen = len(payload)*8 - tag - 1
		if bitLen <= int(d2)/2*8 {
			return 0, nil, fmt.Errorf("%w: bad completion tag", ErrInvalidBag)
		}
		bits[len(bits)-1] &^= 1 << uint(tag)
	}
	if bitLen > MaxBits {
		return 0, nil, fmt.Errorf("%w: %d bits", ErrInvalidBag, bitLen)
	}
	return bitLen, bits, nil
}
