package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/account/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/memstore"
)

func TestStoreRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	repo := NewStoreRepository(s)

	got, err := repo.GetByCallerID(ctx, "+27820000001")
	if err != nil {
		t.Fatalf("GetByCallerID: %v", err)
	}
	if got != nil {
		t.Fatalf("GetByCallerID for missing account = %+v, want nil", got)
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	acc := &domain.Account{
		CallerID:       "+27820000001",
		IdentityDigest: "digest",
		CredentialHash: "hash",
		Balance:        150,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	op, err := repo.SaveOp(acc)
	if err != nil {
		t.Fatalf("SaveOp: %v", err)
	}
	if op.Collection != Collection || op.Key != acc.CallerID {
		t.Fatalf("SaveOp = %s/%s, want %s/%s", op.Collection, op.Key, Collection, acc.CallerID)
	}
	if err := s.Apply(ctx, op); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err = repo.GetByCallerID(ctx, acc.CallerID)
	if err != nil {
		t.Fatalf("GetByCallerID: %v", err)
	}
	if got == nil || got.Balance != 150 || got.IdentityDigest != "digest" || got.CredentialHash != "hash" {
		t.Fatalf("GetByCallerID = %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}
