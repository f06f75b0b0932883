/*
Package dao implements the persistence layer of the counter engine. It maps
the engine's logical state (the root cell, execution records and schema
version) onto KV storage and runs over a write-back cache, so an invocation
either persists as a whole or not at all.
*/
package dao

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/dankorotin/countergo/pkg/cell"
	"github.com/dankorotin/countergo/pkg/core/storage"
	"github.com/dankorotin/countergo/pkg/core/state"
	"github.com/dankorotin/countergo/pkg/io"
)

// Version is the storage schema version the DAO works with.
const Version = "0.1.0"

// Simple is a memory-cached DAO over some backing store. All writes go to
// the cache layer until Persist is called.
type Simple struct {
	Store *storage.MemCachedStore
}

// NewSimple creates a new Simple DAO on top of the given backing store.
func NewSimple(backend storage.Store) *Simple {
	return &Simple{Store: storage.NewMemCachedStore(backend)}
}

// GetVersion attempts to get the current version stored in the underlying
// store.
func (dao *Simple) GetVersion() (string, error) {
	data, err := dao.Store.Get(storage.SYSVersion.Bytes())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PutVersion stores the given version in the underlying store.
func (dao *Simple) PutVersion(v string) {
	dao.Store.Put(storage.SYSVersion.Bytes(), []byte(v))
}

// GetRootCell returns the persisted root cell. It never fails on absence:
// if nothing was ever stored an implicit zero cell (64 zero bits) is
// returned, exactly what a freshly deployed counter holds.
func (dao *Simple) GetRootCell() (*cell.Cell, error) {
	data, err := dao.Store.Get(storage.STRootCell.Bytes())
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return ImplicitRootCell(), nil
		}
		return nil, err
	}
	c, err := cell.DecodeBag(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode root cell: %w", err)
	}
	return c, nil
}

// PutRootCell supersedes the persisted root cell.
func (dao *Simple) PutRootCell(c *cell.Cell) error {
	data, err := cell.EncodeBag(c)
	if err != nil {
		return fmt.Errorf("failed to encode root cell: %w", err)
	}
	dao.Store.Put(storage.STRootCell.Bytes(), data)
	return nil
}

// GetExecutionCount returns the number of execution records stored.
func (dao *Simple) GetExecutionCount() (uint64, error) {
	data, err := dao.Store.Get(storage.SYSExecutionCount.Bytes())
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("malformed execution counter of %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// AppendExecution stores the given execution record under its sequence
// number and advances the execution counter.
func (dao *Simple) AppendExecution(e *state.Execution) error {
	w := io.NewBufBinWriter()
	e.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return fmt.Errorf("failed to encode execution: %w", w.Err)
	}
	dao.Store.Put(dao.makeExecutionKey(e.Sequence), w.Bytes())

	count := make([]byte, 8)
	binary.BigEndian.PutUint64(count, e.Sequence+1)
	dao.Store.Put(storage.SYSExecutionCount.Bytes(), count)
	return nil
}

// GetExecution returns the execution record with the given sequence number.
func (dao *Simple) GetExecution(seq uint64) (*state.Execution, error) {
	data, err := dao.Store.Get(dao.makeExecutionKey(seq))
	if err != nil {
		return nil, err
	}
	e := new(state.Execution)
	r := io.NewBinReaderFromBuf(data)
	e.DecodeBinary(r)
	if r.Err != nil {
		return nil, fmt.Errorf("failed to decode execution %d: %w", seq, r.Err)
	}
	return e, nil
}

// GetExecutions returns up to count execution records starting from the
// given sequence number, in sequence order.
func (dao *Simple) GetExecutions(start uint64, count int) ([]state.Execution, error) {
	var (
		res     []state.Execution
		readErr error
	)
	dao.Store.Seek(storage.STExecution.Bytes(), func(k, v []byte) bool {
		if len(k) != 9 || binary.BigEndian.Uint64(k[1:]) < start {
			return true
		}
		e := new(state.Execution)
		r := io.NewBinReaderFromBuf(v)
		e.DecodeBinary(r)
		if r.Err != nil {
			readErr = fmt.Errorf("failed to decode execution: %w", r.Err)
			return false
		}
		res = append(res, *e)
		return true
	})
	if readErr != nil {
		return nil, readErr
	}
	// The cache layer doesn't keep the seek order across layers.
	sort.Slice(res, func(i, j int) bool { return res[i].Sequence < res[j].Sequence })
	if count > 0 && len(res) > count {
		res = res[:count]
	}
	return res, nil
}

// Persist flushes the accumulated changes to the backing store.
func (dao *Simple) Persist() (int, error) {
	return dao.Store.Persist()
}

// Discard drops the accumulated changes.
func (dao *Simple) Discard() {
	dao.Store.Discard()
}

func (dao *Simple) makeExecutionKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = byte(storage.STExecution)
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

// ImplicitRootCell returns the state a never-written counter reads as: a
// single cell with 64 zero bits and no links.
func ImplicitRootCell() *cell.Cell {
	b := cell.NewBuilder()
	// Can't fail, 64 bits are well within an empty cell's capacity.
	_ = b.WriteUint(0, 64)
	return b.Build()
}
