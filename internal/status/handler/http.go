// Package handler serves the read-only wallet status counts.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

// Counter returns how many records a registry holds.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Handler serves GET /status.
type Handler struct {
	accounts Counter
	vouchers Counter
}

// NewHandler returns a status handler over the account ledger and voucher registry.
func NewHandler(accounts, vouchers Counter) *Handler {
	return &Handler{accounts: accounts, vouchers: vouchers}
}

type statusResponse struct {
	Users    int `json:"users"`
	Vouchers int `json:"vouchers"`
}

// GetStatus writes {"users":N,"vouchers":M}.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.Count(r.Context())
	if err != nil {
		log.Printf("status: count accounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	vouchers, err := h.vouchers.Count(r.Context())
	if err != nil {
		log.Printf("status: count vouchers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Users: users, Vouchers: vouchers})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("status: encode response: %v", err)
	}
}
