// Package memstore is an in-memory store.Store used by tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

var errClosed = errors.New("memstore: closed")

// Store keeps every collection in a map guarded by a single RWMutex.
type Store struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

// Get returns a copy of the value stored under collection/key.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	v, ok := s.data[collection][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Apply validates the whole batch first so a bad op leaves the store untouched.
func (s *Store) Apply(ctx context.Context, ops ...store.Op) error {
	if err := store.Validate(ops); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			c, ok := s.data[op.Collection]
			if !ok {
				c = make(map[string][]byte)
				s.data[op.Collection] = c
			}
			c[op.Key] = append([]byte(nil), op.Value...)
		case store.OpDelete:
			delete(s.data[op.Collection], op.Key)
		}
	}
	return nil
}

// Count returns the number of keys in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errClosed
	}
	return len(s.data[collection]), nil
}

// Scan visits keys in sorted order over a snapshot, so fn may call back into the store.
func (s *Store) Scan(ctx context.Context, collection string, fn func(key string, value []byte) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errClosed
	}
	c := s.data[collection]
	keys := make([]string, 0, len(c))
	snapshot := make(map[string][]byte, len(c))
	for k, v := range c {
		keys = append(keys, k)
		snapshot[k] = v
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Ping fails only after Close.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed; later calls return an error.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
