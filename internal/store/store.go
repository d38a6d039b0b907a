// Package store defines the durable key-value persistence every wallet component writes through.
// Entities are grouped into named collections; each collection maps a key to a JSON document.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist in the collection.
var ErrNotFound = errors.New("store: not found")

// OpKind distinguishes writes from deletes inside a batch.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is a single mutation applied as part of an atomic batch.
type Op struct {
	Kind       OpKind
	Collection string
	Key        string
	Value      []byte
}

// Put returns an Op that writes value under collection/key.
func Put(collection, key string, value []byte) Op {
	return Op{Kind: OpPut, Collection: collection, Key: key, Value: value}
}

// Delete returns an Op that removes collection/key. Deleting a missing key is not an error.
func Delete(collection, key string) Op {
	return Op{Kind: OpDelete, Collection: collection, Key: key}
}

// PutJSON encodes v as JSON and returns the corresponding Put op.
func PutJSON(collection, key string, v any) (Op, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Op{}, fmt.Errorf("store: encode %s/%s: %w", collection, key, err)
	}
	return Put(collection, key, b), nil
}

// Applier applies a batch of ops atomically. Implementations must make the whole batch durable
// before returning nil.
type Applier interface {
	Apply(ctx context.Context, ops ...Op) error
}

// Store is the durable key-value store shared by all components.
type Store interface {
	Applier
	// Get returns the value stored under collection/key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Count returns the number of keys in collection.
	Count(ctx context.Context, collection string) (int, error)
	// Scan calls fn for every key in collection. The value slice must not be retained by fn.
	// Returning an error from fn stops the scan and is returned by Scan.
	Scan(ctx context.Context, collection string, fn func(key string, value []byte) error) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// GetJSON loads collection/key and decodes it into v. Returns false (and no error) when the key is absent.
func GetJSON(ctx context.Context, s Store, collection, key string, v any) (bool, error) {
	b, err := s.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("store: decode %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// Validate checks that every op names a collection and key. Backends call it before writing.
func Validate(ops []Op) error {
	for _, op := range ops {
		if op.Collection == "" || op.Key == "" {
			return fmt.Errorf("store: op requires collection and key (got %q/%q)", op.Collection, op.Key)
		}
		if op.Kind != OpPut && op.Kind != OpDelete {
			return fmt.Errorf("store: unknown op kind %d", op.Kind)
		}
	}
	return nil
}
