package repository

import (
	"context"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/otp/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

// Collection is the store collection holding outstanding codes keyed by caller id.
const Collection = "otps"

// Repository defines persistence for one-time code records.
type Repository interface {
	// GetByCallerID returns the record for callerID, or nil if not found.
	GetByCallerID(ctx context.Context, callerID string) (*domain.Record, error)
	SaveOp(r *domain.Record) (store.Op, error)
	DeleteOp(callerID string) store.Op
}

type otpRecord struct {
	CallerID    string    `json:"callerId"`
	CodeHash    string    `json:"codeHash"`
	VoucherCode string    `json:"voucherCode"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StoreRepository persists records in the shared key-value store.
type StoreRepository struct {
	store store.Store
}

// NewStoreRepository returns an OTP repository backed by s.
func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

// GetByCallerID returns the record for callerID, or nil if not found.
func (r *StoreRepository) GetByCallerID(ctx context.Context, callerID string) (*domain.Record, error) {
	var rec otpRecord
	ok, err := store.GetJSON(ctx, r.store, Collection, callerID, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &domain.Record{
		CallerID:    rec.CallerID,
		CodeHash:    rec.CodeHash,
		VoucherCode: rec.VoucherCode,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

// SaveOp returns the put op for rec, replacing any previous record for the caller.
func (r *StoreRepository) SaveOp(rec *domain.Record) (store.Op, error) {
	return store.PutJSON(Collection, rec.CallerID, &otpRecord{
		CallerID:    rec.CallerID,
		CodeHash:    rec.CodeHash,
		VoucherCode: rec.VoucherCode,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
	})
}

// DeleteOp returns the op that removes callerID's record.
func (r *StoreRepository) DeleteOp(callerID string) store.Op {
	return store.Delete(Collection, callerID)
}
