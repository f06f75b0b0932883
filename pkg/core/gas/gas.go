/*
Package gas implements metered execution credit accounting for the mutating
contract path. Every bit read or written, every cell loaded or built and the
final state write consume credit from a per-invocation Meter, prices come
from a Table. The query path runs without a meter and is free by design.
*/
package gas

import (
	"errors"
	"fmt"
)

// ErrOutOfGas is returned when an invocation exceeds its credit limit. The
// invocation aborts as a whole, no state change is committed.
var ErrOutOfGas = errors.New("out of gas")

// Table holds the price of every metered operation.
type Table struct {
	BitRead    int64 `yaml:"BitRead"`
	BitWrite   int64 `yaml:"BitWrite"`
	CellLoad   int64 `yaml:"CellLoad"`
	CellBuild  int64 `yaml:"CellBuild"`
	StateWrite int64 `yaml:"StateWrite"`
}

// DefaultTable returns the default operation prices.
func DefaultTable() Table {
	return Table{
		BitRead:    1,
		BitWrite:   1,
		CellLoad:   100,
		CellBuild:  500,
		StateWrite: 1000,
	}
}

// Meter tracks credit spent by a single invocation against a limit. A nil
// Meter is valid and meters nothing, that's what the free query path uses.
// Meter is not safe for concurrent use, an invocation is single-threaded.
type Meter struct {
	table Table
	limit int64
	used  int64
}

// NewMeter returns a meter with the given prices and limit. Non-positive
// limit means no limit.
func NewMeter(table Table, limit int64) *Meter {
	return &Meter{table: table, limit: limit}
}

// Consumed returns the credit spent so far.
func (m *Meter) Consumed() int64 {
	if m == nil {
		return 0
	}
	return m.used
}

// ConsumeBitsRead charges for reading n bits.
func (m *Meter) ConsumeBitsRead(n int) error {
	return m.consume(int64(n) * m.price(func(t Table) int64 { return t.BitRead }))
}

// ConsumeBitsWritten charges for writing n bits.
func (m *Meter) ConsumeBitsWritten(n int) error {
	return m.consume(int64(n) * m.price(func(t Table) int64 { return t.BitWrite }))
}

// ConsumeCellLoad charges for deserializing one cell.
func (m *Meter) ConsumeCellLoad() error {
	return m.consume(m.price(func(t Table) int64 { return t.CellLoad }))
}

// ConsumeCellBuild charges for finalizing one cell.
func (m *Meter) ConsumeCellBuild() error {
	return m.consume(m.price(func(t Table) int64 { return t.CellBuild }))
}

// ConsumeStateWrite charges for replacing the persisted root.
func (m *Meter) ConsumeStateWrite() error {
	return m.consume(m.price(func(t Table) int64 { return t.StateWrite }))
}

func (m *Meter) price(f func(Table) int64) int64 {
	if m == nil {
		return 0
	}
	return f(m.table)
}

func (m *Meter) consume(amount int64) error {
	if m == nil {
		return nil
	}
	m.used += amount
	if m.limit > 0 && m.used > m.limit {
		return fmt.Errorf("%w: %d spent, %d allowed", ErrOutOfGas, m.used, m.limit)
	}
	return nil
}
