package state

import (
	"testing"

	"github.com/dankorotin/countergo/internal/testserdes"
)

func TestExecutionSerialization(t *testing.T) {
	e := &Execution{
		Sequence:    12,
		PrevTotal:   65535,
		Delta:       5,
		NewTotal:    65540,
		GasConsumed: 1828,
		Timestamp:   1700000000123,
	}
	testserdes.EncodeDecodeBinary(t, e, new(Execution))
	testserdes.MarshalUnmarshalJSON(t, e, new(Execution))
}
