package storage

import (
	"strings"
	"sync"
)

// MemCachedStore is a wrapper around a persistent store that caches all
// changes being made for them to be later flushed in one batch. The counter
// engine runs every mutating invocation against such a layer, so a failed
// invocation never leaves a partial write in the lower store.
type MemCachedStore struct {
	mut sync.RWMutex
	mem map[string][]byte

	// Persistent Store.
	ps Store
}

// KeyValue represents a key-value pair.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// NewMemCachedStore creates a new MemCachedStore object.
func NewMemCachedStore(lower Store) *MemCachedStore {
	return &MemCachedStore{
		mem: make(map[string][]byte),
		ps:  lower,
	}
}

// Get implements the Store interface.
func (s *MemCachedStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	if val, ok := s.mem[string(key)]; ok {
		if val == nil {
			return nil, ErrKeyNotFound
		}
		return val, nil
	}
	return s.ps.Get(key)
}

// Put puts a new KV pair into the cache layer.
func (s *MemCachedStore) Put(key, value []byte) {
	s.mut.Lock()
	s.mem[string(key)] = value
	s.mut.Unlock()
}

// Delete drops the KV pair from the store, the removal is accumulated in the
// cache layer the same way puts are.
func (s *MemCachedStore) Delete(key []byte) {
	s.mut.Lock()
	s.mem[string(key)] = nil
	s.mut.Unlock()
}

// PutChangeSet implements the Store interface.
func (s *MemCachedStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	for k := range puts {
		s.mem[k] = puts[k]
	}
	s.mut.Unlock()
	return nil
}

// Seek implements the Store interface, iterating over both the cache layer
// and the persistent store. Keys deleted in the cache are skipped.
func (s *MemCachedStore) Seek(prefix []byte, f func(k, v []byte) bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	done := false
	sPrefix := string(prefix)
	cached := make(map[string]bool)
	for k := range s.mem {
		if strings.HasPrefix(k, sPrefix) {
			cached[k] = true
		}
	}
	for k := range cached {
		if s.mem[k] != nil {
			if !f([]byte(k), s.mem[k]) {
				done = true
				break
			}
		}
	}
	if done {
		return
	}
	s.ps.Seek(prefix, func(k, v []byte) bool {
		// If it's in mem, we've already handled it above (including
		// deletions).
		if cached[string(k)] {
			return true
		}
		return f(k, v)
	})
}

// Persist flushes all the MemCachedStore contents into the (supposedly)
// persistent store ps, returning the number of keys flushed.
func (s *MemCachedStore) Persist() (int, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	keys := len(s.mem)
	if keys == 0 {
		return 0, nil
	}
	err := s.ps.PutChangeSet(s.mem)
	if err != nil {
		return 0, err
	}
	s.mem = make(map[string][]byte)
	return keys, nil
}

// Discard drops the accumulated changes without flushing them.
func (s *MemCachedStore) Discard() {
	s.mut.Lock()
	s.mem = make(map[string][]byte)
	s.mut.Unlock()
}

// Close implements the Store interface, clears up memory and closes the
// lower layer Store.
func (s *MemCachedStore) Close() error {
	s.mut.Lock()
	s.mem = nil
	s.mut.Unlock()
	return s.ps.Close()
}
