package core

import (
	"math"
	"testing"
	"time"

	"github.com/dankorotin/countergo/pkg/cell"
	"github.com/dankorotin/countergo/pkg/config"
	"github.com/dankorotin/countergo/pkg/core/gas"
	"github.com/dankorotin/countergo/pkg/core/state"
	"github.com/dankorotin/countergo/pkg/core/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testProtoConfig() config.ProtocolConfiguration {
	return config.ProtocolConfiguration{
		GasLimit: config.DefaultGasLimit,
		GasTable: gas.DefaultTable(),
	}
}

func newTestEngine(t *testing.T, cfg config.ProtocolConfiguration) *Engine {
	e, err := NewEngine(cfg, storage.NewMemoryStore(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func incrementMsg(t *testing.T, delta uint16) *Message {
	b := cell.NewBuilder()
	require.NoError(t, b.WriteUint(uint64(delta), 16))
	return NewMessage(b.Build())
}

func TestQueryIdempotent(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	v1, err := e.Total()
	require.NoError(t, err)
	v2, err := e.Total()
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.EqualValues(t, 0, v1)
}

func TestAdditivity(t *testing.T) {
	cfg := testProtoConfig()
	cfg.InitialTotal = 100500
	e := newTestEngine(t, cfg)

	for _, d := range []uint16{0, 1, 5, 1000, 65535} {
		before, err := e.Total()
		require.NoError(t, err)
		exec, err := e.HandleMessage(incrementMsg(t, d))
		require.NoError(t, err)
		require.Equal(t, before, exec.PrevTotal)
		require.Equal(t, d, exec.Delta)
		require.Equal(t, before+uint64(d), exec.NewTotal)

		after, err := e.Total()
		require.NoError(t, err)
		require.Equal(t, before+uint64(d), after)
	}
}

func TestScenario(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	_, err := e.HandleMessage(incrementMsg(t, 5))
	require.NoError(t, err)
	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 5, total)

	_, err = e.HandleMessage(incrementMsg(t, 65535))
	require.NoError(t, err)
	total, err = e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 65540, total)
}

func TestShortBodyFailsFast(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())
	_, err := e.HandleMessage(incrementMsg(t, 7))
	require.NoError(t, err)

	// 15 bits is one short of the minimum.
	b := cell.NewBuilder()
	require.NoError(t, b.WriteUint(5, 15))
	_, err = e.HandleMessage(NewMessage(b.Build()))
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = e.HandleMessage(&Message{})
	require.ErrorIs(t, err, ErrPrecondition)

	// No state change, no execution record.
	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 7, total)
	count, err := e.ExecutionCount()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestExactMinimumBodyAccepted(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	b := cell.NewBuilder()
	require.NoError(t, b.WriteUint(5, 16))
	_, err := e.HandleMessage(NewMessage(b.Build()))
	require.NoError(t, err)

	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
}

func TestExtraBodyBitsIgnored(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	b := cell.NewBuilder()
	require.NoError(t, b.WriteUint(5, 16))
	require.NoError(t, b.WriteUint(0xdeadbeef, 32))
	_, err := e.HandleMessage(NewMessage(b.Build()))
	require.NoError(t, err)

	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
}

func TestOverflowFails(t *testing.T) {
	cfg := testProtoConfig()
	cfg.InitialTotal = math.MaxUint64 - 10
	e := newTestEngine(t, cfg)

	_, err := e.HandleMessage(incrementMsg(t, 10))
	require.NoError(t, err)
	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, uint64(math.MaxUint64), total)

	_, err = e.HandleMessage(incrementMsg(t, 1))
	require.ErrorIs(t, err, ErrIntOverflow)
	total, err = e.Total()
	require.NoError(t, err)
	require.EqualValues(t, uint64(math.MaxUint64), total)

	// Zero increment still fits.
	_, err = e.HandleMessage(incrementMsg(t, 0))
	require.NoError(t, err)
}

func TestGasAccounting(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	exec, err := e.HandleMessage(incrementMsg(t, 1))
	require.NoError(t, err)
	tbl := gas.DefaultTable()
	expected := tbl.CellLoad + 64*tbl.BitRead + 16*tbl.BitRead +
		64*tbl.BitWrite + tbl.CellBuild + tbl.StateWrite
	require.Equal(t, expected, exec.GasConsumed)
}

func TestOutOfGasAborts(t *testing.T) {
	cfg := testProtoConfig()
	cfg.GasLimit = 10
	e := newTestEngine(t, cfg)

	_, err := e.HandleMessage(incrementMsg(t, 5))
	require.ErrorIs(t, err, gas.ErrOutOfGas)

	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
	count, err := e.ExecutionCount()
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestPersistenceAcrossRestarts(t *testing.T) {
	st := storage.NewMemoryStore()
	cfg := testProtoConfig()

	e, err := NewEngine(cfg, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = e.HandleMessage(incrementMsg(t, 12345))
	require.NoError(t, err)
	addr := e.Address()

	e2, err := NewEngine(cfg, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	total, err := e2.Total()
	require.NoError(t, err)
	require.EqualValues(t, 12345, total)
	require.Equal(t, addr, e2.Address())
	require.NoError(t, e2.Close())
}

func TestInitialTotal(t *testing.T) {
	cfg := testProtoConfig()
	cfg.InitialTotal = 777
	e := newTestEngine(t, cfg)

	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 777, total)
}

func TestExecutionRecords(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	for i := uint16(1); i <= 3; i++ {
		_, err := e.HandleMessage(incrementMsg(t, i))
		require.NoError(t, err)
	}

	execs, err := e.GetExecutions(0, 0)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	require.EqualValues(t, 0, execs[0].PrevTotal)
	require.EqualValues(t, 1, execs[0].NewTotal)
	require.EqualValues(t, 6, execs[2].NewTotal)

	exec, err := e.GetExecution(1)
	require.NoError(t, err)
	require.EqualValues(t, 2, exec.Delta)
}

func TestExecutionSubscription(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	ch := make(chan *state.Execution, 1)
	e.SubscribeForExecutions(ch)
	_, err := e.HandleMessage(incrementMsg(t, 5))
	require.NoError(t, err)
	exec := <-ch
	require.EqualValues(t, 5, exec.NewTotal)

	e.UnsubscribeFromExecutions(ch)
	_, err = e.HandleMessage(incrementMsg(t, 5))
	require.NoError(t, err)
	require.Empty(t, ch)
}

func TestStalledSubscriber(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	ch := make(chan *state.Execution)
	e.SubscribeForExecutions(ch)

	msg := incrementMsg(t, 5)
	handleDone := make(chan error, 1)
	go func() {
		_, err := e.HandleMessage(msg)
		handleDone <- err
	}()

	// Wait for the mutation to commit, the handler is then parked
	// delivering the event to a subscriber that doesn't read.
	require.Eventually(t, func() bool {
		count, err := e.ExecutionCount()
		return err == nil && count == 1
	}, time.Second, 10*time.Millisecond)

	// The query path doesn't wait for the stalled subscriber.
	total, err := e.Total()
	require.NoError(t, err)
	require.EqualValues(t, 5, total)

	// Neither does unsubscription.
	unsubDone := make(chan struct{})
	go func() {
		e.UnsubscribeFromExecutions(ch)
		close(unsubDone)
	}()
	select {
	case <-unsubDone:
	case <-time.After(time.Second):
		t.Fatal("unsubscription blocked by a stalled subscriber")
	}

	// The parked delivery completes once the subscriber reads.
	exec := <-ch
	require.EqualValues(t, 5, exec.Delta)
	require.NoError(t, <-handleDone)
}

func TestMergeOverflowBoundary(t *testing.T) {
	v, err := merge(math.MaxUint64-1, 1)
	require.NoError(t, err)
	require.EqualValues(t, uint64(math.MaxUint64), v)

	_, err = merge(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrIntOverflow)

	v, err = merge(math.MaxUint64, 0)
	require.NoError(t, err)
	require.EqualValues(t, uint64(math.MaxUint64), v)
}
