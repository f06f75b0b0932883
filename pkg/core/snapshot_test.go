package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	src := newTestEngine(t, testProtoConfig())

	for _, delta := range []uint16{5, 65535, 100} {
		_, err := src.HandleMessage(incrementMsg(t, delta))
		require.NoError(t, err)
	}
	wantTotal, err := src.Total()
	require.NoError(t, err)
	require.EqualValues(t, 65640, wantTotal)

	data, err := src.DumpState()
	require.NoError(t, err)

	dst := newTestEngine(t, testProtoConfig())
	require.NoError(t, dst.RestoreState(data))

	total, err := dst.Total()
	require.NoError(t, err)
	require.Equal(t, wantTotal, total)

	count, err := dst.ExecutionCount()
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	exec, err := dst.GetExecution(1)
	require.NoError(t, err)
	require.EqualValues(t, 65535, exec.Delta)
	require.EqualValues(t, 65540, exec.NewTotal)

	// The restored engine keeps working.
	exec, err = dst.HandleMessage(incrementMsg(t, 1))
	require.NoError(t, err)
	require.EqualValues(t, 3, exec.Sequence)
	require.EqualValues(t, 65641, exec.NewTotal)
}

func TestSnapshotChecksum(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	data, err := e.DumpState()
	require.NoError(t, err)

	data[len(data)/2] ^= 0xff
	require.ErrorIs(t, e.RestoreState(data), ErrSnapshotChecksum)

	require.ErrorIs(t, e.RestoreState([]byte{1, 2}), ErrSnapshotFormat)
}

func TestSnapshotRestoreNonEmpty(t *testing.T) {
	e := newTestEngine(t, testProtoConfig())

	data, err := e.DumpState()
	require.NoError(t, err)

	_, err = e.HandleMessage(incrementMsg(t, 1))
	require.NoError(t, err)

	require.ErrorIs(t, e.RestoreState(data), ErrStateNotEmpty)
}
