package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/account/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/account/repository"
	"github.com/Gift-Esethu/Ussd-Server/internal/lock"
	"github.com/Gift-Esethu/Ussd-Server/internal/security"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

// Sentinel errors for the ledger; the menu maps them to terminal messages.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrBalanceOverflow   = errors.New("balance limit exceeded")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidCallerID   = errors.New("caller id is required")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
)

// Ledger owns account records and balance mutations. Every mutation for a caller
// holds that caller's lock and is committed as one atomic store batch.
type Ledger struct {
	repo    repository.Repository
	applier store.Applier
	hasher  *security.Hasher
	locks   *lock.Keyed
	now     func() time.Time
}

// NewLedger returns a Ledger that reads through repo and commits through applier.
func NewLedger(repo repository.Repository, applier store.Applier, hasher *security.Hasher) *Ledger {
	return &Ledger{
		repo:    repo,
		applier: applier,
		hasher:  hasher,
		locks:   lock.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the ledger's time source. For tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Get returns the account for callerID, or nil if absent.
func (l *Ledger) Get(ctx context.Context, callerID string) (*domain.Account, error) {
	return l.repo.GetByCallerID(ctx, callerID)
}

// Count returns the number of accounts.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	return l.repo.Count(ctx)
}

// CreateOrUpdateCredential registers callerID. A new account gets the identity digest of idNumber,
// the PIN hash and a zero balance. An existing account only has its PIN hash replaced.
// extra ops (e.g. clearing the session) are committed in the same batch.
func (l *Ledger) CreateOrUpdateCredential(ctx context.Context, callerID, idNumber, pin string, extra ...store.Op) (*domain.Account, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, ErrInvalidCallerID
	}
	hash, err := l.hasher.HashPIN(pin)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	unlock := l.locks.Lock(callerID)
	defer unlock()

	acc, err := l.repo.GetByCallerID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	if acc == nil {
		acc = &domain.Account{
			CallerID:       callerID,
			IdentityDigest: security.IdentityDigest(idNumber),
			CreatedAt:      now,
		}
	}
	acc.CredentialHash = hash
	acc.UpdatedAt = now
	if err := l.commit(ctx, extra, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// VerifyCredential reports whether pin matches the account's credential. False when no credential is set.
func (l *Ledger) VerifyCredential(acc *domain.Account, pin string) bool {
	if !acc.Registered() {
		return false
	}
	return l.hasher.VerifyPIN(acc.CredentialHash, pin)
}

// EnsureAccount returns the account for callerID, creating it with zero balance and no credential if absent.
func (l *Ledger) EnsureAccount(ctx context.Context, callerID string) (*domain.Account, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, ErrInvalidCallerID
	}
	unlock := l.locks.Lock(callerID)
	defer unlock()

	acc, created, err := l.loadOrNew(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if created {
		if err := l.commit(ctx, nil, acc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Credit adds amount to callerID's balance, auto-creating the account. extra ops are committed
// in the same batch as the balance change. A credit that would overflow the balance fails with
// ErrBalanceOverflow and commits nothing.
func (l *Ledger) Credit(ctx context.Context, callerID string, amount int64, extra ...store.Op) (*domain.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(callerID) == "" {
		return nil, ErrInvalidCallerID
	}
	unlock := l.locks.Lock(callerID)
	defer unlock()

	acc, _, err := l.loadOrNew(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if amount > math.MaxInt64-acc.Balance {
		return nil, ErrBalanceOverflow
	}
	acc.Balance += amount
	acc.UpdatedAt = l.now()
	if err := l.commit(ctx, extra, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Debit subtracts amount from callerID's balance. It fails closed with ErrInsufficientFunds
// (no mutation) when amount exceeds the balance.
func (l *Ledger) Debit(ctx context.Context, callerID string, amount int64, extra ...store.Op) (*domain.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	unlock := l.locks.Lock(callerID)
	defer unlock()

	acc, err := l.repo.GetByCallerID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	if acc.Balance < amount {
		return nil, ErrInsufficientFunds
	}
	acc.Balance -= amount
	acc.UpdatedAt = l.now()
	if err := l.commit(ctx, extra, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Transfer moves amount from one caller to another, auto-creating the recipient. The debit,
// the recipient creation and the credit are one batch so total balance is conserved.
// Returns the sender's updated account.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount int64, extra ...store.Op) (*domain.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(to) == "" {
		return nil, ErrInvalidCallerID
	}
	if from == to {
		return nil, ErrSameAccount
	}
	unlock := l.locks.LockAll(from, to)
	defer unlock()

	sender, err := l.repo.GetByCallerID(ctx, from)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrAccountNotFound
	}
	if sender.Balance < amount {
		return nil, ErrInsufficientFunds
	}
	recipient, _, err := l.loadOrNew(ctx, to)
	if err != nil {
		return nil, err
	}
	if amount > math.MaxInt64-recipient.Balance {
		return nil, ErrBalanceOverflow
	}
	now := l.now()
	sender.Balance -= amount
	sender.UpdatedAt = now
	recipient.Balance += amount
	recipient.UpdatedAt = now
	if err := l.commit(ctx, extra, sender, recipient); err != nil {
		return nil, err
	}
	return sender, nil
}

// loadOrNew must be called with callerID's lock held.
func (l *Ledger) loadOrNew(ctx context.Context, callerID string) (*domain.Account, bool, error) {
	acc, err := l.repo.GetByCallerID(ctx, callerID)
	if err != nil {
		return nil, false, err
	}
	if acc != nil {
		return acc, false, nil
	}
	now := l.now()
	return &domain.Account{CallerID: callerID, CreatedAt: now, UpdatedAt: now}, true, nil
}

func (l *Ledger) commit(ctx context.Context, extra []store.Op, accounts ...*domain.Account) error {
	ops := make([]store.Op, 0, len(accounts)+len(extra))
	for _, a := range accounts {
		op, err := l.repo.SaveOp(a)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	ops = append(ops, extra...)
	if err := l.applier.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}
