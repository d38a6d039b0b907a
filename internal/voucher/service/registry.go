package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountdomain "github.com/Gift-Esethu/Ussd-Server/internal/account/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/lock"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
	"github.com/Gift-Esethu/Ussd-Server/internal/voucher/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/voucher/repository"
)

// Sentinel errors for the voucher registry.
var (
	ErrInvalidVoucher  = errors.New("code and amount required")
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrVoucherRedeemed = errors.New("voucher already redeemed")
)

// Crediter credits an account and commits extra ops in the same batch. Implemented by the account ledger.
type Crediter interface {
	Credit(ctx context.Context, callerID string, amount int64, extra ...store.Op) (*accountdomain.Account, error)
}

// Registry owns voucher records and their single-use redemption.
type Registry struct {
	repo    repository.Repository
	applier store.Applier
	locks   *lock.Keyed
	now     func() time.Time
}

// NewRegistry returns a Registry reading through repo and committing through applier.
func NewRegistry(repo repository.Repository, applier store.Applier) *Registry {
	return &Registry{
		repo:    repo,
		applier: applier,
		locks:   lock.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the registry's time source. For tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Issue creates or replaces the voucher for the normalized code. Any previous voucher with the
// same code, redeemed or not, is overwritten.
func (r *Registry) Issue(ctx context.Context, code string, amount int64) (*domain.Voucher, error) {
	code = domain.NormalizeCode(code)
	if code == "" || amount <= 0 {
		return nil, ErrInvalidVoucher
	}
	unlock := r.locks.Lock(code)
	defer unlock()

	v := &domain.Voucher{Code: code, Amount: amount, CreatedAt: r.now()}
	op, err := r.repo.SaveOp(v)
	if err != nil {
		return nil, err
	}
	if err := r.applier.Apply(ctx, op); err != nil {
		return nil, fmt.Errorf("issue voucher: %w", err)
	}
	return v, nil
}

// Lookup returns the voucher for code (normalized), or nil if absent.
func (r *Registry) Lookup(ctx context.Context, code string) (*domain.Voucher, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	return r.repo.GetByCode(ctx, code)
}

// Redeem marks the voucher redeemed without crediting anyone.
func (r *Registry) Redeem(ctx context.Context, code string) (*domain.Voucher, error) {
	code = domain.NormalizeCode(code)
	unlock := r.locks.Lock(code)
	defer unlock()

	v, op, err := r.redeemOp(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := r.applier.Apply(ctx, op); err != nil {
		return nil, fmt.Errorf("redeem voucher: %w", err)
	}
	return v, nil
}

// RedeemInto marks the voucher redeemed and credits its amount to callerID in one batch, together
// with extra ops. The voucher lock is held across the credit so the amount is credited exactly once.
func (r *Registry) RedeemInto(ctx context.Context, code, callerID string, ledger Crediter, extra ...store.Op) (*domain.Voucher, *accountdomain.Account, error) {
	code = domain.NormalizeCode(code)
	unlock := r.locks.Lock(code)
	defer unlock()

	v, op, err := r.redeemOp(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	ops := append([]store.Op{op}, extra...)
	acc, err := ledger.Credit(ctx, callerID, v.Amount, ops...)
	if err != nil {
		return nil, nil, err
	}
	return v, acc, nil
}

// Count returns the number of vouchers.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.repo.Count(ctx)
}

// redeemOp must be called with code's lock held.
func (r *Registry) redeemOp(ctx context.Context, code string) (*domain.Voucher, store.Op, error) {
	if code == "" {
		return nil, store.Op{}, ErrVoucherNotFound
	}
	v, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, store.Op{}, err
	}
	if v == nil {
		return nil, store.Op{}, ErrVoucherNotFound
	}
	if v.Redeemed {
		return nil, store.Op{}, ErrVoucherRedeemed
	}
	now := r.now()
	v.Redeemed = true
	v.RedeemedAt = &now
	op, err := r.repo.SaveOp(v)
	if err != nil {
		return nil, store.Op{}, err
	}
	return v, op, nil
}
