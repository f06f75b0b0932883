package config

import (
	"errors"

	"github.com/dankorotin/countergo/pkg/core/gas"
)

// DefaultGasLimit is the per-invocation execution credit limit used when
// none is configured.
const DefaultGasLimit = 1_000_000

// ProtocolConfiguration represents the protocol config: everything that
// defines the behavior of the counter contract itself rather than of the
// node around it.
type ProtocolConfiguration struct {
	// InitialTotal is the counter value materialized at deployment.
	InitialTotal uint64 `yaml:"InitialTotal"`
	// GasLimit is the execution credit limit per mutating invocation.
	// Non-positive means no limit.
	GasLimit int64 `yaml:"GasLimit"`
	// GasTable holds the prices of metered operations.
	GasTable gas.Table `yaml:"GasTable"`
}

func defaultGasTable() gas.Table {
	return gas.DefaultTable()
}

// Validate checks ProtocolConfiguration for internal consistency.
func (p *ProtocolConfiguration) Validate() error {
	t := p.GasTable
	if t.BitRead < 0 || t.BitWrite < 0 || t.CellLoad < 0 || t.CellBuild < 0 || t.StateWrite < 0 {
		return errors.New("gas table prices can't be negative")
	}
	return nil
}
