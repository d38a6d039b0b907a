package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/session/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

// Collection is the store collection holding sessions.
const Collection = "sessions"

// Repository defines persistence for sessions.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	SaveOp(s *domain.Session) (store.Op, error)
	DeleteOp(id string) store.Op
	// List calls fn for every stored session.
	List(ctx context.Context, fn func(*domain.Session) error) error
}

type sessionRecord struct {
	ID               string    `json:"id"`
	CallerID         string    `json:"callerId"`
	PendingIDNumber  string    `json:"pendingIdNumber,omitempty"`
	PendingRecipient string    `json:"pendingRecipient,omitempty"`
	PendingAmount    int64     `json:"pendingAmount,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// StoreRepository persists sessions in the shared key-value store.
type StoreRepository struct {
	store store.Store
}

// NewStoreRepository returns a session repository backed by s.
func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

// GetByID returns the session for id, or nil if not found.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var rec sessionRecord
	ok, err := store.GetJSON(ctx, r.store, Collection, id, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return recordToDomain(&rec), nil
}

// SaveOp returns the put op for s.
func (r *StoreRepository) SaveOp(s *domain.Session) (store.Op, error) {
	return store.PutJSON(Collection, s.ID, &sessionRecord{
		ID:               s.ID,
		CallerID:         s.CallerID,
		PendingIDNumber:  s.PendingIDNumber,
		PendingRecipient: s.PendingRecipient,
		PendingAmount:    s.PendingAmount,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	})
}

// DeleteOp returns the op that removes session id.
func (r *StoreRepository) DeleteOp(id string) store.Op {
	return store.Delete(Collection, id)
}

// List decodes every stored session and passes it to fn.
func (r *StoreRepository) List(ctx context.Context, fn func(*domain.Session) error) error {
	return r.store.Scan(ctx, Collection, func(key string, value []byte) error {
		var rec sessionRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		return fn(recordToDomain(&rec))
	})
}

func recordToDomain(rec *sessionRecord) *domain.Session {
	return &domain.Session{
		ID:               rec.ID,
		CallerID:         rec.CallerID,
		PendingIDNumber:  rec.PendingIDNumber,
		PendingRecipient: rec.PendingRecipient,
		PendingAmount:    rec.PendingAmount,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}
