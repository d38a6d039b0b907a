// Package handler exposes the administrative voucher interface over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/audit"
	"github.com/Gift-Esethu/Ussd-Server/internal/voucher/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/voucher/service"
)

const errCodeAndAmountRequired = "code and amount required"

// DefaultMaxAmount caps a voucher's amount unless SetMaxAmount overrides it.
const DefaultMaxAmount int64 = 1000000

// Issuer creates or replaces vouchers. Implemented by *service.Registry.
type Issuer interface {
	Issue(ctx context.Context, code string, amount int64) (*domain.Voucher, error)
}

// Handler serves POST /admin/voucher.
type Handler struct {
	registry  Issuer
	audit     audit.AuditLogger
	maxAmount int64
}

// NewHandler returns a voucher admin handler. auditLogger may be nil.
func NewHandler(registry Issuer, auditLogger audit.AuditLogger) *Handler {
	return &Handler{registry: registry, audit: auditLogger, maxAmount: DefaultMaxAmount}
}

// SetMaxAmount sets the largest accepted voucher amount. Non-positive values are ignored.
func (h *Handler) SetMaxAmount(n int64) {
	if n > 0 {
		h.maxAmount = n
	}
}

type issueRequest struct {
	Code   string          `json:"code"`
	Amount json.RawMessage `json:"amount"`
}

type voucherResponse struct {
	Code       string     `json:"code"`
	Amount     int64      `json:"amount"`
	Redeemed   bool       `json:"redeemed"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IssueVoucher creates or replaces a voucher from a JSON body {code, amount}.
// amount may be a JSON number or a numeric string; it must be a positive whole number no larger
// than the handler's maximum.
func (h *Handler) IssueVoucher(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errCodeAndAmountRequired})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil || amount > h.maxAmount || strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errCodeAndAmountRequired})
		return
	}
	v, err := h.registry.Issue(r.Context(), req.Code, amount)
	if err != nil {
		if errors.Is(err, service.ErrInvalidVoucher) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": errCodeAndAmountRequired})
			return
		}
		log.Printf("voucher: issue %q: %v", req.Code, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if h.audit != nil {
		h.audit.LogEvent(r.Context(), "", audit.ActionVoucherIssue, "voucher", fmt.Sprintf("code=%s amount=%d", v.Code, v.Amount))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"voucher": voucherResponse{
			Code:       v.Code,
			Amount:     v.Amount,
			Redeemed:   v.Redeemed,
			RedeemedAt: v.RedeemedAt,
			CreatedAt:  v.CreatedAt,
		},
	})
}

var errBadAmount = errors.New("amount must be a positive whole number")

func parseAmount(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, errBadAmount
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, errBadAmount
		}
		s = strings.TrimSpace(str)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, errBadAmount
		}
		return n, nil
	}
	// Whole numbers in float form, such as 50.0 or 5e2.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, errBadAmount
	}
	return int64(f), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("voucher: encode response: %v", err)
	}
}
