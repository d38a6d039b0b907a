package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	accountdomain "github.com/Gift-Esethu/Ussd-Server/internal/account/domain"
	accountrepo "github.com/Gift-Esethu/Ussd-Server/internal/account/repository"
	accountservice "github.com/Gift-Esethu/Ussd-Server/internal/account/service"
	"github.com/Gift-Esethu/Ussd-Server/internal/security"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/memstore"
	"github.com/Gift-Esethu/Ussd-Server/internal/voucher/repository"
)

func newTestRegistry(t *testing.T) (*Registry, *accountservice.Ledger, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	ledger := accountservice.NewLedger(accountrepo.NewStoreRepository(s), s, security.NewHasher(4))
	return NewRegistry(repository.NewStoreRepository(s), s), ledger, s
}

func TestRegistry_IssueNormalizesAndOverwrites(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	v, err := r.Issue(ctx, "  abc123 ", 50)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if v.Code != "ABC123" {
		t.Errorf("Code = %q, want ABC123", v.Code)
	}
	if _, err := r.Redeem(ctx, "abc123"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if _, err := r.Issue(ctx, "ABC123", 75); err != nil {
		t.Fatalf("re-Issue: %v", err)
	}
	got, err := r.Lookup(ctx, "Abc123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got == nil || got.Amount != 75 || got.Redeemed {
		t.Fatalf("Lookup after re-issue = %+v, want fresh voucher of 75", got)
	}
	if n, _ := r.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestRegistry_IssueValidation(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	testCases := []struct {
		name   string
		code   string
		amount int64
	}{
		{"empty code", "", 10},
		{"blank code", "   ", 10},
		{"zero amount", "X", 0},
		{"negative amount", "X", -1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Issue(ctx, tc.code, tc.amount); !errors.Is(err, ErrInvalidVoucher) {
				t.Errorf("Issue: want ErrInvalidVoucher, got %v", err)
			}
		})
	}
	if n, _ := r.Count(ctx); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestRegistry_LookupAbsent(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	for _, code := range []string{"", "NOPE"} {
		v, err := r.Lookup(context.Background(), code)
		if err != nil || v != nil {
			t.Errorf("Lookup(%q) = %v, %v; want nil, nil", code, v, err)
		}
	}
}

func TestRegistry_RedeemSingleUse(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return fixed })
	if _, err := r.Issue(ctx, "V1", 20); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	v, err := r.Redeem(ctx, "v1")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if !v.Redeemed || v.RedeemedAt == nil || !v.RedeemedAt.Equal(fixed) {
		t.Errorf("Redeem = %+v", v)
	}
	if _, err := r.Redeem(ctx, "V1"); !errors.Is(err, ErrVoucherRedeemed) {
		t.Errorf("second Redeem: want ErrVoucherRedeemed, got %v", err)
	}
	if _, err := r.Redeem(ctx, "V2"); !errors.Is(err, ErrVoucherNotFound) {
		t.Errorf("Redeem unknown: want ErrVoucherNotFound, got %v", err)
	}
}

func TestRegistry_RedeemIntoCreditsOnce(t *testing.T) {
	ctx := context.Background()
	r, ledger, s := newTestRegistry(t)
	if _, err := r.Issue(ctx, "CASH", 40); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.Apply(ctx, store.Put("otps", "c1", []byte(`{}`))); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	v, acc, err := r.RedeemInto(ctx, "cash", "c1", ledger, store.Delete("otps", "c1"))
	if err != nil {
		t.Fatalf("RedeemInto: %v", err)
	}
	if !v.Redeemed || acc.Balance != 40 {
		t.Fatalf("RedeemInto = %+v, %+v", v, acc)
	}
	if _, err := s.Get(ctx, "otps", "c1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("extra delete op not applied: %v", err)
	}

	if _, _, err := r.RedeemInto(ctx, "CASH", "c1", ledger); !errors.Is(err, ErrVoucherRedeemed) {
		t.Errorf("second RedeemInto: want ErrVoucherRedeemed, got %v", err)
	}
	got, _ := ledger.Get(ctx, "c1")
	if got.Balance != 40 {
		t.Errorf("Balance = %d, want 40", got.Balance)
	}
}

type failingCrediter struct{}

func (failingCrediter) Credit(ctx context.Context, callerID string, amount int64, extra ...store.Op) (*accountdomain.Account, error) {
	return nil, errors.New("credit failed")
}

func TestRegistry_RedeemIntoCreditFailureLeavesVoucher(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	if _, err := r.Issue(ctx, "CASH", 40); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := r.RedeemInto(ctx, "CASH", "c1", failingCrediter{}); err == nil {
		t.Fatal("RedeemInto should fail when credit fails")
	}
	v, _ := r.Lookup(ctx, "CASH")
	if v.Redeemed {
		t.Error("voucher must stay unredeemed when the credit batch fails")
	}
}

func TestRegistry_ConcurrentRedeemInto(t *testing.T) {
	ctx := context.Background()
	r, ledger, _ := newTestRegistry(t)
	if _, err := r.Issue(ctx, "RACE", 25); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := r.RedeemInto(ctx, "RACE", "c1", ledger); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("successful redemptions = %d, want 1", wins.Load())
	}
	acc, _ := ledger.Get(ctx, "c1")
	if acc.Balance != 25 {
		t.Errorf("Balance = %d, want 25", acc.Balance)
	}
}
