package gas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeterAccounting(t *testing.T) {
	m := NewMeter(DefaultTable(), 0)
	require.NoError(t, m.ConsumeBitsRead(64))
	require.NoError(t, m.ConsumeBitsWritten(64))
	require.NoError(t, m.ConsumeCellLoad())
	require.NoError(t, m.ConsumeCellBuild())
	require.NoError(t, m.ConsumeStateWrite())
	require.EqualValues(t, 64+64+100+500+1000, m.Consumed())
}

func TestMeterLimit(t *testing.T) {
	m := NewMeter(DefaultTable(), 100)
	require.NoError(t, m.ConsumeBitsRead(100))
	require.ErrorIs(t, m.ConsumeBitsRead(1), ErrOutOfGas)
	// Spending keeps being accounted after the limit is hit.
	require.EqualValues(t, 101, m.Consumed())
}

func TestNilMeterIsFree(t *testing.T) {
	var m *Meter
	require.NoError(t, m.ConsumeBitsRead(1 << 20))
	require.NoError(t, m.ConsumeStateWrite())
	require.EqualValues(t, 0, m.Consumed())
}
