/*
Package storage contains the KV backends the counter engine persists its
state into. The Store interface is deliberately small, it's always wrapped
with a MemCachedStore layer that accumulates an invocation's writes and
flushes them in one batch on success.
*/
package storage

import (
	"errors"
	"fmt"

	"github.com/dankorotin/countergo/pkg/core/storage/dbconfig"
)

// KeyPrefix constants.
const (
	// STRootCell is the key of the persisted root cell (the counter state),
	// stored as a bag-of-cells.
	STRootCell KeyPrefix = 0x01
	// STExecution is used for execution records identified by a big-endian
	// sequence number.
	STExecution KeyPrefix = 0x10
	// SYSExecutionCount stores the total number of executions performed.
	SYSExecutionCount KeyPrefix = 0xc0
	// SYSVersion stores the storage schema version.
	SYSVersion KeyPrefix = 0xf0
)

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

type (
	// Store is the underlying KV backend for the counter state, it's not
	// intended to be used directly, you wrap it with some memory cache
	// layer most of the time.
	Store interface {
		Get([]byte) ([]byte, error)
		// PutChangeSet allows to push the prepared changeset to the Store.
		// A nil value means key removal.
		PutChangeSet(puts map[string][]byte) error
		// Seek calls f for every key-value pair with the given prefix in
		// the ascending key order. Seek continues iteration until false is
		// returned from f. Key and value slices should not be modified.
		Seek(prefix []byte, f func(k, v []byte) bool)
		Close() error
	}

	// KeyPrefix is a constant byte added as a prefix for each key
	// stored.
	KeyPrefix uint8
)

// Bytes returns the bytes representation of KeyPrefix.
func (k KeyPrefix) Bytes() []byte {
	return []byte{byte(k)}
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case dbconfig.LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case dbconfig.InMemoryDB:
		store = NewMemoryStore()
	case dbconfig.BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	return store, err
}
