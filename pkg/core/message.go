package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/dankorotin/countergo/pkg/cell"
)

const (
	// TotalBits is the bit width of the persisted counter.
	TotalBits = 64
	// DeltaBits is the bit width of the inbound increment.
	DeltaBits = 16
	// MinMessageBits is the minimum acceptable message body length. A body
	// shorter than the increment itself can't be processed.
	MinMessageBits = DeltaBits
)

// Mutating path errors.
var (
	// ErrPrecondition is returned for message bodies shorter than
	// MinMessageBits. It's the only error expected under adversarial input
	// and it's checked before any metered work is done.
	ErrPrecondition = errors.New("message body is too short")
	// ErrIntOverflow is returned when the increment doesn't fit the 64-bit
	// counter anymore. The invocation aborts, the old total stays.
	ErrIntOverflow = errors.New("counter overflow")
)

// Message is an inbound message as seen by the engine: the conceptual
// handler signature fields plus the body cursor the counter actually
// consumes. Balance, Amount and Envelope are carried for interface
// compatibility with the hosting environment and are not interpreted here.
type Message struct {
	// Balance is the contract balance at the time of delivery.
	Balance uint64
	// Amount is the value attached to the message.
	Amount uint64
	// Envelope is the full message envelope.
	Envelope *cell.Cell
	// Body is the read cursor over the message payload.
	Body *cell.Slice
}

// NewMessage returns a message with the given cell as the payload and zero
// envelope fields, which is all the counter core looks at.
func NewMessage(body *cell.Cell) *Message {
	return &Message{Body: body.BeginRead()}
}

// validate checks that at least minBits bits are left in the body payload
// without consuming anything. It runs first on the mutating path, so that
// malformed input costs as little metered credit as possible.
func validate(body *cell.Slice, minBits int) error {
	if body == nil {
		return fmt.Errorf("%w: no body", ErrPrecondition)
	}
	if remaining := body.RemainingBits(); remaining < minBits {
		return fmt.Errorf("%w: %d bits, need at least %d", ErrPrecondition, remaining, minBits)
	}
	return nil
}

// merge computes the new total. Unsigned 64-bit addition with the failing
// overflow policy: an increment that doesn't fit aborts the invocation
// instead of wrapping or saturating.
func merge(total uint64, delta uint16) (uint64, error) {
	if total > math.MaxUint64-uint64(delta) {
		return 0, fmt.Errorf("%w: %d + %d", ErrIntOverflow, total, delta)
	}
	return total + uint64(delta), nil
}
