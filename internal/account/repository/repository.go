package repository

import (
	"context"

	"github.com/Gift-Esethu/Ussd-Server/internal/account/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

// Collection is the store collection holding accounts.
const Collection = "accounts"

// Repository defines persistence for accounts. Writes are returned as ops so the
// ledger can commit several of them in one atomic batch.
type Repository interface {
	// GetByCallerID returns the account for callerID, or nil if not found.
	GetByCallerID(ctx context.Context, callerID string) (*domain.Account, error)
	// SaveOp returns the op that persists a.
	SaveOp(a *domain.Account) (store.Op, error)
	// Count returns the number of accounts.
	Count(ctx context.Context) (int, error)
}
