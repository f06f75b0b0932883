package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of a Store, mainly
// used for testing. Do not use MemoryStore in production.
type MemoryStore struct {
	mut sync.RWMutex
	mem map[string][]byte
}

// NewMemoryStore creates a new MemoryStore object.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mem: make(map[string][]byte),
	}
}

// Get implements the Store interface.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	if val, ok := s.mem[string(key)]; ok && val != nil {
		return val, nil
	}
	return nil, ErrKeyNotFound
}

// put puts a key-value pair into the store, it's supposed to be called
// with the mutex locked.
func (s *MemoryStore) put(key string, value []byte) {
	if value == nil {
		delete(s.mem, key)
		return
	}
	s.mem[key] = value
}

// PutChangeSet implements the Store interface. Never returns an error.
func (s *MemoryStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	for k := range puts {
		s.put(k, puts[k])
	}
	s.mut.Unlock()
	return nil
}

// Seek implements the Store interface.
func (s *MemoryStore) Seek(prefix []byte, f func(k, v []byte) bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	s.seek(prefix, f)
}

// seek is an internal unlocked implementation of Seek.
func (s *MemoryStore) seek(prefix []byte, f func(k, v []byte) bool) {
	sPrefix := string(prefix)
	var memList []KeyValue
	for k, v := range s.mem {
		if v != nil && strings.HasPrefix(k, sPrefix) {
			memList = append(memList, KeyValue{
				Key:   []byte(k),
				Value: v,
			})
		}
	}
	sort.Slice(memList, func(i, j int) bool {
		return string(memList[i].Key) < string(memList[j].Key)
	})
	for _, kv := range memList {
		if !f(kv.Key, kv.Value) {
			break
		}
	}
}

// Close implements the Store interface and clears up memory. Never returns
// an error.
func (s *MemoryStore) Close() error {
	s.mut.Lock()
	s.mem = nil
	s.mut.Unlock()
	return nil
}
