package storage

import (
	"path/filepath"
	"testing"

	"github.com/dankorotin/countergo/pkg/core/storage/dbconfig"
	"github.com/stretchr/testify/require"
)

type dbSetup struct {
	name   string
	create func(t *testing.T) Store
}

func newLevelDBForTesting(t *testing.T) Store {
	ldbDir := t.TempDir()
	dbOptions := dbconfig.LevelDBOptions{
		DataDirectoryPath: ldbDir,
	}
	newLevelStore, err := NewLevelDBStore(dbOptions)
	require.NoError(t, err, "NewLevelDBStore error")
	return newLevelStore
}

func newBoltStoreForTesting(t *testing.T) Store {
	d := t.TempDir()
	dbPath := filepath.Join(d, "test_bolt_db")
	boltDBStore, err := NewBoltDBStore(dbconfig.BoltDBOptions{FilePath: dbPath})
	require.NoError(t, err)
	return boltDBStore
}

var dbSetups = []dbSetup{
	{"MemoryStore", func(t *testing.T) Store { return NewMemoryStore() }},
	{"LevelDBStore", newLevelDBForTesting},
	{"BoltDBStore", newBoltStoreForTesting},
	{"MemCachedStore", func(t *testing.T) Store { return NewMemCachedStore(NewMemoryStore()) }},
}

func testStoreGetNonExistent(t *testing.T, s Store) {
	key := []byte("sparse")

	_, err := s.Get(key)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func testStorePutAndGet(t *testing.T, s Store) {
	key := []byte("foo")
	value := []byte("bar")

	require.NoError(t, s.PutChangeSet(map[string][]byte{string(key): value}))

	result, err := s.Get(key)
	require.Nil(t, err)
	require.Equal(t, value, result)
}

func testStoreDelete(t *testing.T, s Store) {
	key := []byte("foo")
	value := []byte("bar")

	require.NoError(t, s.PutChangeSet(map[string][]byte{string(key): value}))
	require.NoError(t, s.PutChangeSet(map[string][]byte{string(key): nil}))

	_, err := s.Get(key)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func testStoreSeek(t *testing.T, s Store) {
	require.NoError(t, s.PutChangeSet(map[string][]byte{
		"\x10\x01": []byte("one"),
		"\x10\x02": []byte("two"),
		"\x10\x03": []byte("three"),
		"\x20\x01": []byte("other"),
	}))

	var keys [][]byte
	s.Seek([]byte{0x10}, func(k, v []byte) bool {
		key := make([]byte, len(k))
		copy(key, k)
		keys = append(keys, key)
		return true
	})
	require.Len(t, keys, 3)

	keys = keys[:0]
	s.Seek([]byte{0x10}, func(k, v []byte) bool {
		keys = append(keys, k)
		return false
	})
	require.Len(t, keys, 1)
}

func TestAllDBs(t *testing.T) {
	for _, setup := range dbSetups {
		setup := setup
		t.Run(setup.name, func(t *testing.T) {
			for _, test := range []struct {
				name string
				f    func(*testing.T, Store)
			}{
				{"GetNonExistent", testStoreGetNonExistent},
				{"PutAndGet", testStorePutAndGet},
				{"Delete", testStoreDelete},
				{"Seek", testStoreSeek},
			} {
				s := setup.create(t)
				t.Run(test.name, func(t *testing.T) { test.f(t, s) })
				require.NoError(t, s.Close())
			}
		})
	}
}

func TestMemCachedStorePersist(t *testing.T) {
	ps := NewMemoryStore()
	ts := NewMemCachedStore(ps)

	ts.Put([]byte{0x01}, []byte("value"))
	// Not visible in the lower layer before Persist.
	_, err := ps.Get([]byte{0x01})
	require.ErrorIs(t, err, ErrKeyNotFound)

	n, err := ts.Persist()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	v, err := ps.Get([]byte{0x01})
	require.NoError(t, err)
	require.Equal(t, []byte("value"), v)

	// Persist with no changes is a no-op.
	n, err = ts.Persist()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestMemCachedStoreDiscard(t *testing.T) {
	ps := NewMemoryStore()
	ts := NewMemCachedStore(ps)

	ts.Put([]byte{0x01}, []byte("value"))
	ts.Discard()

	_, err := ts.Get([]byte{0x01})
	require.ErrorIs(t, err, ErrKeyNotFound)
	n, err := ts.Persist()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestMemCachedStoreDelete(t *testing.T) {
	ps := NewMemoryStore()
	require.NoError(t, ps.PutChangeSet(map[string][]byte{"\x01": []byte("value")}))
	ts := NewMemCachedStore(ps)

	ts.Delete([]byte{0x01})
	_, err := ts.Get([]byte{0x01})
	require.ErrorIs(t, err, ErrKeyNotFound)

	_, err = ts.Persist()
	require.NoError(t, err)
	_, err = ps.Get([]byte{0x01})
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestNewStoreFromConfig(t *testing.T) {
	s, err := NewStore(dbconfig.DBConfiguration{Type: dbconfig.InMemoryDB})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = NewStore(dbconfig.DBConfiguration{Type: "redis"})
	require.Error(t, err)
}
