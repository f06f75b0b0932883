package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dankorotin/countergo/pkg/core/storage/dbconfig"
	"github.com/stretchr/testify/require"
)

const testConfig = `
ProtocolConfiguration:
  InitialTotal: 42
  GasLimit: 500000
  GasTable:
    BitRead: 2
    BitWrite: 3
    CellLoad: 10
    CellBuild: 20
    StateWrite: 30
ApplicationConfiguration:
  LogLevel: debug
  DBConfiguration:
    Type: leveldb
    LevelDBOptions:
      DataDirectoryPath: /tmp/counter-db
  RPC:
    Enabled: true
    Addresses:
      - ":20332"
    MaxWebSocketClients: 128
  Prometheus:
    Enabled: true
    Addresses:
      - ":2112"
`

func TestLoad(t *testing.T) {
	cfg, err := Load([]byte(testConfig))
	require.NoError(t, err)

	require.EqualValues(t, 42, cfg.ProtocolConfiguration.InitialTotal)
	require.EqualValues(t, 500000, cfg.ProtocolConfiguration.GasLimit)
	require.EqualValues(t, 2, cfg.ProtocolConfiguration.GasTable.BitRead)
	require.EqualValues(t, 30, cfg.ProtocolConfiguration.GasTable.StateWrite)

	require.Equal(t, "debug", cfg.ApplicationConfiguration.LogLevel)
	require.Equal(t, dbconfig.LevelDB, cfg.ApplicationConfiguration.DBConfiguration.Type)
	require.True(t, cfg.ApplicationConfiguration.RPC.Enabled)
	require.Equal(t, []string{":20332"}, cfg.ApplicationConfiguration.RPC.GetAddresses())
	require.Equal(t, 128, cfg.ApplicationConfiguration.RPC.MaxWebSocketClients)
	require.True(t, cfg.ApplicationConfiguration.Prometheus.Enabled)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte("{}"))
	require.NoError(t, err)
	require.EqualValues(t, 0, cfg.ProtocolConfiguration.InitialTotal)
	require.EqualValues(t, DefaultGasLimit, cfg.ProtocolConfiguration.GasLimit)
	require.EqualValues(t, 1, cfg.ProtocolConfiguration.GasTable.BitRead)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load([]byte("not yaml at all: ["))
	require.Error(t, err)

	_, err = Load([]byte("ProtocolConfiguration:\n  GasTable:\n    BitRead: -1\n"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "countergo.yml")
	require.NoError(t, os.WriteFile(p, []byte(testConfig), 0644))

	cfg, err := LoadFile(p)
	require.NoError(t, err)
	require.EqualValues(t, 42, cfg.ProtocolConfiguration.InitialTotal)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}
