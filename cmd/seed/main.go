// seed issues vouchers into the configured store and optionally mints an admin bearer token.
//
//	go run ./cmd/seed -voucher CASH50=50 -voucher CASH100=100
//	go run ./cmd/seed -admin-token ops@example -token-ttl 24h
//
// Issuing an existing code replaces it (and resets its redeemed flag).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/config"
	"github.com/Gift-Esethu/Ussd-Server/internal/security"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/backend"
	voucherrepo "github.com/Gift-Esethu/Ussd-Server/internal/voucher/repository"
	voucherservice "github.com/Gift-Esethu/Ussd-Server/internal/voucher/service"
)

// voucherFlags collects repeated -voucher CODE=AMOUNT flags.
type voucherFlags []voucherArg

type voucherArg struct {
	code   string
	amount int64
}

func (v *voucherFlags) String() string {
	parts := make([]string, 0, len(*v))
	for _, s := range *v {
		parts = append(parts, fmt.Sprintf("%s=%d", s.code, s.amount))
	}
	return strings.Join(parts, ",")
}

func (v *voucherFlags) Set(raw string) error {
	arg, err := parseVoucher(raw)
	if err != nil {
		return err
	}
	*v = append(*v, arg)
	return nil
}

func parseVoucher(raw string) (voucherArg, error) {
	code, amountStr, ok := strings.Cut(raw, "=")
	code = strings.TrimSpace(code)
	if !ok || code == "" {
		return voucherArg{}, errors.New("voucher must be CODE=AMOUNT")
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(amountStr), 10, 64)
	if err != nil || amount <= 0 {
		return voucherArg{}, fmt.Errorf("voucher %s: amount must be a positive whole number", code)
	}
	return voucherArg{code: code, amount: amount}, nil
}

func main() {
	var vouchers voucherFlags
	flag.Var(&vouchers, "voucher", "voucher to issue as CODE=AMOUNT (repeatable)")
	adminSubject := flag.String("admin-token", "", "mint an admin token for this subject (needs ADMIN_JWT_PRIVATE_KEY)")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "admin token lifetime")
	flag.Parse()

	if len(vouchers) == 0 && *adminSubject == "" {
		log.Fatal("seed: nothing to do; pass -voucher CODE=AMOUNT and/or -admin-token SUBJECT")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if len(vouchers) > 0 {
		st, err := backend.Open(cfg)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer st.Close()

		registry := voucherservice.NewRegistry(voucherrepo.NewStoreRepository(st), st)
		ctx := context.Background()
		for _, arg := range vouchers {
			v, err := registry.Issue(ctx, arg.code, arg.amount)
			if err != nil {
				log.Fatalf("seed: issue %s: %v", arg.code, err)
			}
			log.Printf("seed: issued voucher %s for R%d", v.Code, v.Amount)
		}
	}

	if *adminSubject != "" {
		token, expiresAt, err := mintAdminToken(cfg, *adminSubject, *tokenTTL)
		if err != nil {
			log.Fatalf("seed: admin token: %v", err)
		}
		log.Printf("seed: admin token for %s expires %s", *adminSubject, expiresAt.Format(time.RFC3339))
		fmt.Println(token)
	}
}

func mintAdminToken(cfg *config.Config, subject string, ttl time.Duration) (string, time.Time, error) {
	if cfg.AdminJWTPrivateKey == "" {
		return "", time.Time{}, errors.New("ADMIN_JWT_PRIVATE_KEY is not set")
	}
	signer, err := security.ParsePrivateKey(cfg.AdminJWTPrivateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	p := security.NewTokenProvider(signer, nil, cfg.AdminJWTIssuer, cfg.AdminJWTAudience, ttl)
	return p.IssueAdmin(subject)
}
