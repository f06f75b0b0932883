package dao

import (
	"testing"

	"github.com/dankorotin/countergo/pkg/cell"
	"github.com/dankorotin/countergo/pkg/core/state"
	"github.com/dankorotin/countergo/pkg/core/storage"
	"github.com/stretchr/testify/require"
)

func TestRootCellImplicitZero(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())

	c, err := dao.GetRootCell()
	require.NoError(t, err)
	require.Equal(t, 64, c.BitLen())

	v, err := c.BeginRead().ReadUint(64)
	require.NoError(t, err)
	require.EqualValues(t, 0, v)
}

func TestRootCellRoundTrip(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())

	b := cell.NewBuilder()
	require.NoError(t, b.WriteUint(65540, 64))
	require.NoError(t, dao.PutRootCell(b.Build()))
	_, err := dao.Persist()
	require.NoError(t, err)

	c, err := dao.GetRootCell()
	require.NoError(t, err)
	v, err := c.BeginRead().ReadUint(64)
	require.NoError(t, err)
	require.EqualValues(t, 65540, v)
}

func TestRootCellDiscard(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())

	b := cell.NewBuilder()
	require.NoError(t, b.WriteUint(7, 64))
	require.NoError(t, dao.PutRootCell(b.Build()))
	dao.Discard()

	c, err := dao.GetRootCell()
	require.NoError(t, err)
	v, err := c.BeginRead().ReadUint(64)
	require.NoError(t, err)
	require.EqualValues(t, 0, v)
}

func TestExecutions(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())

	count, err := dao.GetExecutionCount()
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	for i := 0; i < 3; i++ {
		require.NoError(t, dao.AppendExecution(&state.Execution{
			Sequence:  uint64(i),
			PrevTotal: uint64(i * 5),
			Delta:     5,
			NewTotal:  uint64(i*5 + 5),
		}))
	}
	_, err = dao.Persist()
	require.NoError(t, err)

	count, err = dao.GetExecutionCount()
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	e, err := dao.GetExecution(1)
	require.NoError(t, err)
	require.EqualValues(t, 5, e.PrevTotal)
	require.EqualValues(t, 10, e.NewTotal)

	execs, err := dao.GetExecutions(0, 0)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	for i := range execs {
		require.EqualValues(t, i, execs[i].Sequence)
	}

	execs, err = dao.GetExecutions(1, 1)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	require.EqualValues(t, 1, execs[0].Sequence)
}

func TestVersion(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())

	_, err := dao.GetVersion()
	require.ErrorIs(t, err, storage.ErrKeyNotFound)

	dao.PutVersion(Version)
	v, err := dao.GetVersion()
	require.NoError(t, err)
	require.Equal(t, Version, v)
}
