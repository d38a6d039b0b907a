package repository

import (
	"context"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/store"
	"github.com/Gift-Esethu/Ussd-Server/internal/voucher/domain"
)

type voucherRecord struct {
	Code       string     `json:"code"`
	Amount     int64      `json:"amount"`
	Redeemed   bool       `json:"redeemed"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// StoreRepository persists vouchers in the shared key-value store.
type StoreRepository struct {
	store store.Store
}

// NewStoreRepository returns a voucher repository backed by s.
func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

// GetByCode returns the voucher for code, or nil if not found.
func (r *StoreRepository) GetByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	var rec voucherRecord
	ok, err := store.GetJSON(ctx, r.store, Collection, code, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &domain.Voucher{
		Code:       rec.Code,
		Amount:     rec.Amount,
		Redeemed:   rec.Redeemed,
		RedeemedAt: rec.RedeemedAt,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

// SaveOp returns the put op for v, keyed by its code.
func (r *StoreRepository) SaveOp(v *domain.Voucher) (store.Op, error) {
	return store.PutJSON(Collection, v.Code, &voucherRecord{
		Code:       v.Code,
		Amount:     v.Amount,
		Redeemed:   v.Redeemed,
		RedeemedAt: v.RedeemedAt,
		CreatedAt:  v.CreatedAt,
	})
}

// Count returns the number of stored vouchers.
func (r *StoreRepository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, Collection)
}
