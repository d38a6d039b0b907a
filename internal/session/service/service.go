package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/lock"
	"github.com/Gift-Esethu/Ussd-Server/internal/session/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/session/repository"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
)

// Service owns per-session transient state. Every mutation is flushed before returning.
type Service struct {
	repo    repository.Repository
	applier store.Applier
	ttl     time.Duration
	locks   *lock.Keyed
	now     func() time.Time
}

// NewService returns a session service. Sessions idle longer than ttl are treated as absent;
// ttl <= 0 keeps sessions until cleared.
func NewService(repo repository.Repository, applier store.Applier, ttl time.Duration) *Service {
	return &Service{
		repo:    repo,
		applier: applier,
		ttl:     ttl,
		locks:   lock.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the service's time source. For tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Lock serializes all work on session id. The menu holds it for a whole turn; Sweep takes it
// before deleting so an active turn is never swept from under itself.
func (s *Service) Lock(id string) (unlock func()) {
	return s.locks.Lock(id)
}

// GetOrCreate returns the live session for id. A missing session, one idle past the TTL, or one
// bound to a different caller is replaced by a fresh session with no pending fields.
func (s *Service) GetOrCreate(ctx context.Context, id, callerID string) (*domain.Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if sess != nil && sess.CallerID == callerID && !sess.Idle(now, s.ttl) {
		return sess, nil
	}
	if sess != nil {
		log.Printf("session: replacing session %s (caller match=%t)", id, sess.CallerID == callerID)
	}
	sess = &domain.Session{ID: id, CallerID: callerID, CreatedAt: now, UpdatedAt: now}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Update persists sess and refreshes its idle timer.
func (s *Service) Update(ctx context.Context, sess *domain.Session) error {
	sess.UpdatedAt = s.now()
	return s.save(ctx, sess)
}

// Clear removes session id.
func (s *Service) Clear(ctx context.Context, id string) error {
	if err := s.applier.Apply(ctx, s.repo.DeleteOp(id)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ClearOp returns the delete op for session id, for inclusion in a larger batch.
func (s *Service) ClearOp(id string) store.Op {
	return s.repo.DeleteOp(id)
}

// Sweep deletes every session idle past the TTL and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	now := s.now()
	var idle []string
	err := s.repo.List(ctx, func(sess *domain.Session) error {
		if sess.Idle(now, s.ttl) {
			idle = append(idle, sess.ID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	removed := 0
	for _, id := range idle {
		ok, err := s.sweepOne(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (s *Service) sweepOne(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil || sess == nil {
		return false, err
	}
	if !sess.Idle(s.now(), s.ttl) {
		return false, nil
	}
	if err := s.applier.Apply(ctx, s.repo.DeleteOp(id)); err != nil {
		return false, fmt.Errorf("sweep session %s: %w", id, err)
	}
	return true, nil
}

// RunSweeper calls Sweep every interval until ctx is done. interval <= 0 returns immediately.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("session: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("session: swept %d idle sessions", n)
			}
		}
	}
}

func (s *Service) save(ctx context.Context, sess *domain.Session) error {
	op, err := s.repo.SaveOp(sess)
	if err != nil {
		return err
	}
	if err := s.applier.Apply(ctx, op); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
