/*
Package core implements the counter contract engine: the mutating message
handler, the free query and the host-side plumbing around them (state DAO,
gas accounting, execution records and event feeds).
*/
package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/dankorotin/countergo/pkg/cell"
	"github.com/dankorotin/countergo/pkg/config"
	"github.com/dankorotin/countergo/pkg/core/dao"
	"github.com/dankorotin/countergo/pkg/core/gas"
	"github.com/dankorotin/countergo/pkg/core/state"
	"github.com/dankorotin/countergo/pkg/core/storage"
	"github.com/dankorotin/countergo/pkg/crypto/hash"
	"github.com/dankorotin/countergo/pkg/util"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// Number of execution records kept in the LRU cache serving RPC reads.
const execCacheSize = 1000

// Engine is the counter contract host. It owns the persisted root cell,
// serializes mutating invocations against it and keeps the query path
// lock-shared, side-effect-free and unmetered.
type Engine struct {
	config config.ProtocolConfiguration

	// lock protects the DAO: mutating invocations take it exclusively,
	// queries share it.
	lock sync.RWMutex
	dao  *dao.Simple

	address   util.Uint160
	execCache *lru.Cache
	log       *zap.Logger

	subLock     sync.RWMutex
	subscribers map[chan<- *state.Execution]bool
}

// NewEngine returns the counter engine using the given backing store. On the
// first run it materializes the genesis state: the root cell holding the
// configured initial total.
func NewEngine(cfg config.ProtocolConfiguration, st storage.Store, log *zap.Logger) (*Engine, error) {
	if log == nil {
		return nil, fmt.Errorf("log is nil")
	}
	d := dao.NewSimple(st)
	e := &Engine{
		config:      cfg,
		dao:         d,
		log:         log,
		subscribers: make(map[chan<- *state.Execution]bool),
	}
	e.execCache, _ = lru.New(execCacheSize) // Never errors for positive size.

	genesis, err := genesisCell(cfg.InitialTotal)
	if err != nil {
		return nil, err
	}
	e.address = hash.Hash160(genesis.Hash().BytesBE())

	ver, err := d.GetVersion()
	if err != nil {
		if err != storage.ErrKeyNotFound {
			return nil, fmt.Errorf("failed to read storage version: %w", err)
		}
		if err = e.init(genesis); err != nil {
			return nil, err
		}
		return e, nil
	}
	if ver != dao.Version {
		return nil, fmt.Errorf("storage version mismatch (expected=%s, actual=%s)", dao.Version, ver)
	}
	return e, nil
}

// init writes the genesis state on the first start.
func (e *Engine) init(genesis *cell.Cell) error {
	e.dao.PutVersion(dao.Version)
	if err := e.dao.PutRootCell(genesis); err != nil {
		return fmt.Errorf("failed to store genesis state: %w", err)
	}
	if _, err := e.dao.Persist(); err != nil {
		return fmt.Errorf("failed to persist genesis state: %w", err)
	}
	e.log.Info("genesis state materialized",
		zap.Uint64("initialTotal", e.config.InitialTotal),
		zap.Stringer("hash", genesis.Hash()))
	return nil
}

func genesisCell(initial uint64) (*cell.Cell, error) {
	b := cell.NewBuilder()
	if err := b.WriteUint(initial, TotalBits); err != nil {
		return nil, fmt.Errorf("failed to build genesis cell: %w", err)
	}
	return b.Build(), nil
}

// Address returns the state identity derived from the genesis root cell. It
// stays the same for the whole contract lifetime.
func (e *Engine) Address() util.Uint160 {
	return e.address
}

// Config returns the protocol configuration the engine runs with.
func (e *Engine) Config() config.ProtocolConfiguration {
	return e.config
}

// HandleMessage processes one inbound message: it validates the body length
// precondition, reads the persisted total, applies the increment and
// atomically replaces the root cell. Everything it does is charged to a
// per-invocation gas meter, any failure aborts the invocation with no
// observable state change.
func (e *Engine) HandleMessage(msg *Message) (*state.Execution, error) {
	meter := gas.NewMeter(e.config.GasTable, e.config.GasLimit)

	// Fail fast before spending anything on malformed input.
	if err := validate(msg.Body, MinMessageBits); err != nil {
		return nil, err
	}

	e.lock.Lock()
	exec, err := e.handleMessageInternal(msg, meter)
	if err != nil {
		e.dao.Discard()
		e.lock.Unlock()
		return nil, err
	}
	if _, err := e.dao.Persist(); err != nil {
		e.dao.Discard()
		e.lock.Unlock()
		return nil, fmt.Errorf("failed to persist state: %w", err)
	}
	e.execCache.Add(exec.Sequence, exec)
	e.lock.Unlock()

	e.log.Debug("message handled",
		zap.Uint64("sequence", exec.Sequence),
		zap.Uint16("delta", exec.Delta),
		zap.Uint64("total", exec.NewTotal),
		zap.Int64("gasConsumed", exec.GasConsumed))
	// Deliver outside of the state lock, a slow subscriber must not block
	// queries or the next invocation.
	e.notify(exec)
	return exec, nil
}

// handleMessageInternal does the metered part of message processing against
// the DAO cache layer, the caller commits or discards as a whole.
func (e *Engine) handleMessageInternal(msg *Message, meter *gas.Meter) (*state.Execution, error) {
	if err := meter.ConsumeCellLoad(); err != nil {
		return nil, err
	}
	root, err := e.dao.GetRootCell()
	if err != nil {
		return nil, fmt.Errorf("failed to load root cell: %w", err)
	}

	if err := meter.ConsumeBitsRead(TotalBits); err != nil {
		return nil, err
	}
	total, err := root.BeginRead().ReadUint(TotalBits)
	if err != nil {
		return nil, fmt.Errorf("failed to read total: %w", err)
	}

	if err := meter.ConsumeBitsRead(DeltaBits); err != nil {
		return nil, err
	}
	delta, err := msg.Body.ReadUint(DeltaBits)
	if err != nil {
		// Unreachable after validate, but the codec misuse must surface.
		return nil, err
	}

	newTotal, err := merge(total, uint16(delta))
	if err != nil {
		return nil, err
	}

	if err := meter.ConsumeBitsWritten(TotalBits); err != nil {
		return nil, err
	}
	if err := meter.ConsumeCellBuild(); err != nil {
		return nil, err
	}
	b := cell.NewBuilder()
	if err := b.WriteUint(newTotal, TotalBits); err != nil {
		return nil, fmt.Errorf("failed to write total: %w", err)
	}

	if err := meter.ConsumeStateWrite(); err != nil {
		return nil, err
	}
	if err := e.dao.PutRootCell(b.Build()); err != nil {
		return nil, err
	}

	seq, err := e.dao.GetExecutionCount()
	if err != nil {
		return nil, fmt.Errorf("failed to read execution counter: %w", err)
	}
	exec := &state.Execution{
		Sequence:    seq,
		PrevTotal:   total,
		Delta:       uint16(delta),
		NewTotal:    newTotal,
		GasConsumed: meter.Consumed(),
		Timestamp:   uint64(time.Now().UnixMilli()),
	}
	if err := e.dao.AppendExecution(exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// Total returns the current counter value. It's free: no gas meter is
// constructed, nothing is written and it's safe to call concurrently and
// arbitrarily often.
func (e *Engine) Total() (uint64, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	root, err := e.dao.GetRootCell()
	if err != nil {
		return 0, fmt.Errorf("failed to load root cell: %w", err)
	}
	total, err := root.BeginRead().ReadUint(TotalBits)
	if err != nil {
		return 0, fmt.Errorf("failed to read total: %w", err)
	}
	return total, nil
}

// RootCell returns the currently persisted root cell.
func (e *Engine) RootCell() (*cell.Cell, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.dao.GetRootCell()
}

// ExecutionCount returns the number of successful mutating invocations.
func (e *Engine) ExecutionCount() (uint64, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.dao.GetExecutionCount()
}

// GetExecution returns the execution record with the given sequence number.
func (e *Engine) GetExecution(seq uint64) (*state.Execution, error) {
	if exec, ok := e.execCache.Get(seq); ok {
		return exec.(*state.Execution), nil
	}
	e.lock.RLock()
	exec, err := e.dao.GetExecution(seq)
	e.lock.RUnlock()
	if err != nil {
		return nil, err
	}
	e.execCache.Add(seq, exec)
	return exec, nil
}

// GetExecutions returns up to count execution records starting from the
// given sequence number.
func (e *Engine) GetExecutions(start uint64, count int) ([]state.Execution, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.dao.GetExecutions(start, count)
}

// SubscribeForExecutions adds the given channel to the execution event
// broadcasting, so new execution records are sent to it.
func (e *Engine) SubscribeForExecutions(ch chan<- *state.Execution) {
	e.subLock.Lock()
	e.subscribers[ch] = true
	e.subLock.Unlock()
}

// UnsubscribeFromExecutions unsubscribes the given channel from execution
// notifications.
func (e *Engine) UnsubscribeFromExecutions(ch chan<- *state.Execution) {
	e.subLock.Lock()
	delete(e.subscribers, ch)
	e.subLock.Unlock()
}

func (e *Engine) notify(exec *state.Execution) {
	e.subLock.RLock()
	chs := make([]chan<- *state.Execution, 0, len(e.subscribers))
	for ch := range e.subscribers {
		chs = append(chs, ch)
	}
	e.subLock.RUnlock()
	// Delivery is blocking, but no locks are held while sending, so a
	// stalled subscriber only delays events and can still be unsubscribed
	// (it may receive one in-flight event after that).
	for _, ch := range chs {
		ch <- exec
	}
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.dao.Store.Close()
}
