// Package leveldb implements store.Store on top of an on-disk LevelDB database.
// Keys are laid out as "<collection>/<key>"; every batch is written with fsync.
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

const keySep = "/"

// Store is a LevelDB-backed store.Store.
type Store struct {
	db *leveldb.DB
	wo *opt.WriteOptions
}

// Open opens (or creates) a LevelDB database in dir.
func Open(dir string) (*Store, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("leveldb store path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve leveldb store path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb store: %w", err)
	}
	return &Store{db: db, wo: &opt.WriteOptions{Sync: true}}, nil
}

func compositeKey(collection, key string) []byte {
	return []byte(collection + keySep + key)
}

func prefix(collection string) []byte {
	return []byte(collection + keySep)
}

// Get returns the value stored under collection/key.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	v, err := s.db.Get(compositeKey(collection, key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("leveldb get %s/%s: %w", collection, key, err)
	}
	return v, nil
}

// Apply writes ops as one synced LevelDB batch.
func (s *Store) Apply(ctx context.Context, ops ...store.Op) error {
	if err := store.Validate(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			batch.Put(compositeKey(op.Collection, op.Key), op.Value)
		case store.OpDelete:
			batch.Delete(compositeKey(op.Collection, op.Key))
		}
	}
	if err := s.db.Write(batch, s.wo); err != nil {
		return fmt.Errorf("leveldb write batch: %w", err)
	}
	return nil
}

// Count iterates the collection prefix.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	iter := s.db.NewIterator(util.BytesPrefix(prefix(collection)), nil)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("leveldb count %s: %w", collection, err)
	}
	return n, nil
}

// Scan iterates over a snapshot of the collection; fn may write to the store.
func (s *Store) Scan(ctx context.Context, collection string, fn func(key string, value []byte) error) error {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("leveldb snapshot: %w", err)
	}
	defer snap.Release()

	p := prefix(collection)
	iter := snap.NewIterator(util.BytesPrefix(p), nil)
	defer iter.Release()
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := string(iter.Key()[len(p):])
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb scan %s: %w", collection, err)
	}
	return nil
}

// Ping reads a database property, which fails once the database is closed.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("leveldb store not configured")
	}
	if _, err := s.db.GetProperty("leveldb.num-files-at-level0"); err != nil {
		return fmt.Errorf("leveldb ping: %w", err)
	}
	return nil
}

// Close releases the underlying LevelDB resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
