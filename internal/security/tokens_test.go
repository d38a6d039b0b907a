package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidateAdmin(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, exp, err := p.IssueAdmin("ops@example.org")
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	if token == "" {
		t.Fatal("token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}
	sub, err := p.ValidateAdmin(token)
	if err != nil {
		t.Fatalf("ValidateAdmin: %v", err)
	}
	if sub != "ops@example.org" {
		t.Errorf("subject = %q", sub)
	}
}

func TestTokenProvider_ValidateAdminInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateAdmin("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateAdmin invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_WrongAudienceOrIssuer(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := p.IssueAdmin("ops")
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	other := NewTokenProvider(nil, p.publicKey, "test-issuer", "other-audience", time.Minute)
	if _, err := other.ValidateAdmin(token); err != ErrInvalidToken {
		t.Errorf("wrong audience: want ErrInvalidToken, got %v", err)
	}
	other = NewTokenProvider(nil, p.publicKey, "other-issuer", "test-audience", time.Minute)
	if _, err := other.ValidateAdmin(token); err != ErrInvalidToken {
		t.Errorf("wrong issuer: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	base, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	p := NewTokenProvider(base.privateKey, base.publicKey, "test-issuer", "test-audience", -time.Minute)
	token, _, err := p.IssueAdmin("ops")
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	if _, err := p.ValidateAdmin(token); err != ErrInvalidToken {
		t.Errorf("expired token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_VerifyOnly(t *testing.T) {
	base, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	verifier := NewTokenProvider(nil, base.publicKey, "test-issuer", "test-audience", time.Minute)
	if _, _, err := verifier.IssueAdmin("ops"); err != ErrSigningDisabled {
		t.Errorf("IssueAdmin without private key: want ErrSigningDisabled, got %v", err)
	}
	token, _, err := base.IssueAdmin("ops")
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	if sub, err := verifier.ValidateAdmin(token); err != nil || sub != "ops" {
		t.Errorf("verify-only ValidateAdmin = %q, %v", sub, err)
	}
}
