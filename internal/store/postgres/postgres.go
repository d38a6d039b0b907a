// Package postgres implements store.Store as rows of the kv_entries table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

const (
	getQuery    = `SELECT value FROM kv_entries WHERE collection = $1 AND key = $2`
	upsertQuery = `INSERT INTO kv_entries (collection, key, value, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteQuery = `DELETE FROM kv_entries WHERE collection = $1 AND key = $2`
	countQuery  = `SELECT count(*) FROM kv_entries WHERE collection = $1`
	scanQuery   = `SELECT key, value FROM kv_entries WHERE collection = $1 ORDER BY key`
)

// Store is a Postgres-backed store.Store. Values must be valid JSON documents.
type Store struct {
	db *sql.DB
}

// New returns a store that uses db. The kv_entries table must exist (see internal/db/migrate).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the document stored under collection/key.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, getQuery, collection, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres get %s/%s: %w", collection, key, err)
	}
	return []byte(value), nil
}

// Apply runs all ops in a single transaction.
func (s *Store) Apply(ctx context.Context, ops ...store.Op) (err error) {
	if err := store.Validate(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			_, err = tx.ExecContext(ctx, upsertQuery, op.Collection, op.Key, string(op.Value))
		case store.OpDelete:
			_, err = tx.ExecContext(ctx, deleteQuery, op.Collection, op.Key)
		}
		if err != nil {
			return fmt.Errorf("postgres apply %s/%s: %w", op.Collection, op.Key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}
	return nil
}

// Count returns the number of rows in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countQuery, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres count %s: %w", collection, err)
	}
	return n, nil
}

// Scan reads the whole collection before calling fn so fn may write without holding a cursor open.
func (s *Store) Scan(ctx context.Context, collection string, fn func(key string, value []byte) error) error {
	rows, err := s.db.QueryContext(ctx, scanQuery, collection)
	if err != nil {
		return fmt.Errorf("postgres scan %s: %w", collection, err)
	}
	type row struct {
		key   string
		value string
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.value); err != nil {
			rows.Close()
			return fmt.Errorf("postgres scan %s: %w", collection, err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("postgres scan %s: %w", collection, err)
	}
	rows.Close()

	for _, r := range all {
		if err := fn(r.key, []byte(r.value)); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
