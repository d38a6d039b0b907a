package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/audit/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

type auditRecord struct {
	ID        string    `json:"id"`
	CallerID  string    `json:"callerId,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// StoreRepository persists audit entries in the shared key-value store.
type StoreRepository struct {
	store store.Store
}

// NewStoreRepository returns an audit repository backed by s.
func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

// GetByID returns the entry for id, or nil if not found.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	var rec auditRecord
	ok, err := store.GetJSON(ctx, r.store, Collection, id, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return recordToDomain(&rec), nil
}

// ListByCaller scans the collection for callerID's entries. limit <= 0 means no limit.
func (r *StoreRepository) ListByCaller(ctx context.Context, callerID string, limit int) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	err := r.store.Scan(ctx, Collection, func(key string, value []byte) error {
		var rec auditRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		if rec.CallerID == callerID {
			out = append(out, recordToDomain(&rec))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Create persists a.
func (r *StoreRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	op, err := store.PutJSON(Collection, a.ID, &auditRecord{
		ID:        a.ID,
		CallerID:  a.CallerID,
		Action:    a.Action,
		Resource:  a.Resource,
		IP:        a.IP,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
	})
	if err != nil {
		return err
	}
	return r.store.Apply(ctx, op)
}

func recordToDomain(rec *auditRecord) *domain.AuditLog {
	return &domain.AuditLog{
		ID:        rec.ID,
		CallerID:  rec.CallerID,
		Action:    rec.Action,
		Resource:  rec.Resource,
		IP:        rec.IP,
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
	}
}
