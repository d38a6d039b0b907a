package repository

import (
	"context"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/account/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

// accountRecord is the persisted JSON shape of an account.
type accountRecord struct {
	CallerID       string    `json:"callerId"`
	IdentityDigest string    `json:"identityDigest,omitempty"`
	CredentialHash string    `json:"credentialHash,omitempty"`
	Balance        int64     `json:"balance"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// StoreRepository persists accounts in the shared key-value store.
type StoreRepository struct {
	store store.Store
}

// NewStoreRepository returns an account repository backed by s.
func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

// GetByCallerID returns the account for callerID, or nil if not found.
// It returns an error only for store failures, not for missing keys.
func (r *StoreRepository) GetByCallerID(ctx context.Context, callerID string) (*domain.Account, error) {
	var rec accountRecord
	ok, err := store.GetJSON(ctx, r.store, Collection, callerID, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return recordToDomain(&rec), nil
}

// SaveOp returns the put op for a.
func (r *StoreRepository) SaveOp(a *domain.Account) (store.Op, error) {
	return store.PutJSON(Collection, a.CallerID, domainToRecord(a))
}

// Count returns the number of stored accounts.
func (r *StoreRepository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, Collection)
}

func recordToDomain(rec *accountRecord) *domain.Account {
	return &domain.Account{
		CallerID:       rec.CallerID,
		IdentityDigest: rec.IdentityDigest,
		CredentialHash: rec.CredentialHash,
		Balance:        rec.Balance,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func domainToRecord(a *domain.Account) *accountRecord {
	return &accountRecord{
		CallerID:       a.CallerID,
		IdentityDigest: a.IdentityDigest,
		CredentialHash: a.CredentialHash,
		Balance:        a.Balance,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
