package repository

import (
	"context"

	"github.com/Gift-Esethu/Ussd-Server/internal/store"
	"github.com/Gift-Esethu/Ussd-Server/internal/voucher/domain"
)

// Collection is the store collection holding vouchers.
const Collection = "vouchers"

// Repository defines persistence for vouchers.
type Repository interface {
	// GetByCode returns the voucher for a normalized code, or nil if not found.
	GetByCode(ctx context.Context, code string) (*domain.Voucher, error)
	// SaveOp returns the op that persists v.
	SaveOp(v *domain.Voucher) (store.Op, error)
	Count(ctx context.Context) (int, error)
}
