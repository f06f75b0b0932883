/*
Package state contains persisted auxiliary records kept next to the counter
root cell.
*/
package state

import (
	"github.com/dankorotin/countergo/pkg/io"
)

// Execution is a record of one successful mutating invocation: the totals
// before and after, the applied increment and the gas spent. Records are
// persisted under consecutive sequence numbers and served over RPC.
type Execution struct {
	// Sequence is the zero-based number of the invocation.
	Sequence uint64 `json:"sequence"`
	// PrevTotal is the persisted total before the invocation.
	PrevTotal uint64 `json:"prevtotal"`
	// Delta is the applied increment.
	Delta uint16 `json:"delta"`
	// NewTotal is the persisted total after the invocation.
	NewTotal uint64 `json:"newtotal"`
	// GasConsumed is the metered credit the invocation spent.
	GasConsumed int64 `json:"gasconsumed"`
	// Timestamp is the invocation wall-clock time in Unix milliseconds.
	Timestamp uint64 `json:"timestamp"`
}

// EncodeBinary implements the io.Serializable interface.
func (e *Execution) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(e.Sequence)
	w.WriteU64LE(e.PrevTotal)
	w.WriteU16LE(e.Delta)
	w.WriteU64LE(e.NewTotal)
	w.WriteU64LE(uint64(e.GasConsumed))
	w.WriteU64LE(e.Timestamp)
}

// DecodeBinary implements the io.Serializable interface.
func (e *Execution) DecodeBinary(r *io.BinReader) {
	e.Sequence = r.ReadU64LE()
	e.PrevTotal = r.ReadU64LE()
	e.Delta = r.ReadU16LE()
	e.NewTotal = r.ReadU64LE()
	e.GasConsumed = int64(r.ReadU64LE())
	e.Timestamp = r.ReadU64LE()
}
