package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/lock"
	"github.com/Gift-Esethu/Ussd-Server/internal/notify"
	"github.com/Gift-Esethu/Ussd-Server/internal/otp"
	"github.com/Gift-Esethu/Ussd-Server/internal/otp/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/otp/repository"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

// DefaultTTL is the lifetime of an issued code when none is configured.
const DefaultTTL = 5 * time.Minute

// Service issues and verifies one-time codes tied to a caller and a pending voucher redemption.
type Service struct {
	repo     repository.Repository
	applier  store.Applier
	notifier notify.Notifier
	ttl      time.Duration
	locks    *lock.Keyed
	now      func() time.Time
	generate func() (string, error)
}

// NewService returns an OTP service. notifier may be nil (codes are then never delivered).
// ttl <= 0 selects DefaultTTL.
func NewService(repo repository.Repository, applier store.Applier, notifier notify.Notifier, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo:     repo,
		applier:  applier,
		notifier: notifier,
		ttl:      ttl,
		locks:    lock.New(),
		now:      func() time.Time { return time.Now().UTC() },
		generate: otp.GenerateCode,
	}
}

// SetClock replaces the service's time source. For tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Issue creates a code for callerID authorizing voucherCode, replacing any outstanding record,
// and hands it to the notifier asynchronously. The plain code is returned; only its hash is stored.
func (s *Service) Issue(ctx context.Context, callerID, voucherCode string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	unlock := s.locks.Lock(callerID)
	defer unlock()

	now := s.now()
	rec := &domain.Record{
		CallerID:    callerID,
		CodeHash:    otp.HashCode(code),
		VoucherCode: voucherCode,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	op, err := s.repo.SaveOp(rec)
	if err != nil {
		return "", err
	}
	if err := s.applier.Apply(ctx, op); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	notify.DispatchAsync(s.notifier, callerID, code)
	return code, nil
}

// Verify checks code against callerID's outstanding record. An expired record is deleted;
// a mismatch keeps the record so the caller may retry until expiry. On ResultValid the
// record is returned and left in place; the caller consumes it together with the redemption.
func (s *Service) Verify(ctx context.Context, callerID, code string) (domain.Result, *domain.Record, error) {
	unlock := s.locks.Lock(callerID)
	defer unlock()

	rec, err := s.repo.GetByCallerID(ctx, callerID)
	if err != nil {
		return domain.ResultAbsent, nil, err
	}
	if rec == nil {
		return domain.ResultAbsent, nil, nil
	}
	if rec.Expired(s.now()) {
		if err := s.applier.Apply(ctx, s.repo.DeleteOp(callerID)); err != nil {
			return domain.ResultExpired, rec, fmt.Errorf("delete expired otp: %w", err)
		}
		return domain.ResultExpired, rec, nil
	}
	if !otp.CodeEqual(code, rec.CodeHash) {
		return domain.ResultMismatch, rec, nil
	}
	return domain.ResultValid, rec, nil
}

// Consume deletes callerID's record.
func (s *Service) Consume(ctx context.Context, callerID string) error {
	unlock := s.locks.Lock(callerID)
	defer unlock()
	return s.applier.Apply(ctx, s.repo.DeleteOp(callerID))
}

// ConsumeOp returns the delete op for callerID's record, for inclusion in a larger batch.
func (s *Service) ConsumeOp(callerID string) store.Op {
	return s.repo.DeleteOp(callerID)
}
