package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/notify"
	"github.com/Gift-Esethu/Ussd-Server/internal/otp"
	"github.com/Gift-Esethu/Ussd-Server/internal/otp/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/otp/repository"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/memstore"
)

type delivery struct {
	callerID, code string
}

func newTestService(t *testing.T) (*Service, *memstore.Store, chan delivery, *time.Time) {
	t.Helper()
	s := memstore.New()
	sent := make(chan delivery, 4)
	n := notify.NotifierFunc(func(ctx context.Context, callerID, code string) error {
		sent <- delivery{callerID, code}
		return nil
	})
	svc := NewService(repository.NewStoreRepository(s), s, n, 0)
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	return svc, s, sent, &now
}

func TestService_IssueStoresHashAndNotifies(t *testing.T) {
	ctx := context.Background()
	svc, s, sent, now := newTestService(t)

	code, err := svc.Issue(ctx, "c1", "VOUCHER")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != otp.Digits {
		t.Errorf("code = %q", code)
	}
	select {
	case d := <-sent:
		if d.callerID != "c1" || d.code != code {
			t.Errorf("delivery = %+v, want c1/%s", d, code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notifier not called")
	}

	rec, err := repository.NewStoreRepository(s).GetByCallerID(ctx, "c1")
	if err != nil || rec == nil {
		t.Fatalf("GetByCallerID = %v, %v", rec, err)
	}
	if rec.CodeHash == code || rec.CodeHash != otp.HashCode(code) {
		t.Error("record must hold the code hash, not the code")
	}
	if rec.VoucherCode != "VOUCHER" {
		t.Errorf("VoucherCode = %q", rec.VoucherCode)
	}
	if !rec.ExpiresAt.Equal(now.Add(DefaultTTL)) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, now.Add(DefaultTTL))
	}
}

func TestService_VerifyOutcomes(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	if res, _, err := svc.Verify(ctx, "c1", "000000"); err != nil || res != domain.ResultAbsent {
		t.Fatalf("Verify without record = %v, %v; want absent", res, err)
	}

	code, err := svc.Issue(ctx, "c1", "V")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	res, _, err := svc.Verify(ctx, "c1", wrong)
	if err != nil || res != domain.ResultMismatch {
		t.Fatalf("Verify wrong code = %v, %v; want mismatch", res, err)
	}
	res, rec, err := svc.Verify(ctx, "c1", code)
	if err != nil || res != domain.ResultValid {
		t.Fatalf("Verify after mismatch = %v, %v; want valid (record retained)", res, err)
	}
	if rec.VoucherCode != "V" {
		t.Errorf("VoucherCode = %q", rec.VoucherCode)
	}

	if err := svc.Consume(ctx, "c1"); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res, _, _ := svc.Verify(ctx, "c1", code); res != domain.ResultAbsent {
		t.Errorf("Verify after Consume = %v, want absent", res)
	}
}

func TestService_ExpiryDeletesRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	issuedAt := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	code, err := svc.Issue(ctx, "c1", "V")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.SetClock(func() time.Time { return issuedAt.Add(5 * time.Minute) })
	if res, _, _ := svc.Verify(ctx, "c1", code); res != domain.ResultValid {
		t.Fatalf("Verify at exactly expiry = %v, want valid", res)
	}

	svc.SetClock(func() time.Time { return issuedAt.Add(301 * time.Second) })
	res, _, err := svc.Verify(ctx, "c1", code)
	if err != nil || res != domain.ResultExpired {
		t.Fatalf("Verify at +301s = %v, %v; want expired", res, err)
	}
	if res, _, _ := svc.Verify(ctx, "c1", code); res != domain.ResultAbsent {
		t.Errorf("expired record should be deleted, got %v", res)
	}
}

func TestService_IssueReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	codes := []string{"111111", "222222"}
	svc.generate = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	if _, err := svc.Issue(ctx, "c1", "A"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Issue(ctx, "c1", "B"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if res, _, _ := svc.Verify(ctx, "c1", "111111"); res != domain.ResultMismatch {
		t.Errorf("old code = %v, want mismatch", res)
	}
	res, rec, _ := svc.Verify(ctx, "c1", "222222")
	if res != domain.ResultValid || rec.VoucherCode != "B" {
		t.Errorf("new code = %v / %+v", res, rec)
	}
}

func TestService_IssueErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	svc.generate = func() (string, error) { return "", errors.New("entropy") }
	if _, err := svc.Issue(ctx, "c1", "V"); err == nil {
		t.Fatal("Issue should fail when generation fails")
	}
	svc.generate = otp.GenerateCode
	if _, err := svc.Issue(ctx, "", "V"); err == nil {
		t.Fatal("Issue with empty caller should fail store validation")
	}
}

func TestService_ConsumeOp(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	op := svc.ConsumeOp("c1")
	if op.Kind != store.OpDelete || op.Collection != repository.Collection || op.Key != "c1" {
		t.Errorf("ConsumeOp = %+v", op)
	}
}
