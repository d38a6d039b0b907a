// Package handler implements the dev-only HTTP endpoint GET /dev/otp/{callerId}.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Gift-Esethu/Ussd-Server/internal/devotp"
)

const devOTPNote = "DEV MODE ONLY"

// Handler reads captured codes. Only mounted when dev OTP is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a handler that reads OTP from the given store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// GetOTP returns the plain OTP for the callerId URL parameter. 404 if missing or expired.
func (h *Handler) GetOTP(w http.ResponseWriter, r *http.Request) {
	callerID := strings.TrimSpace(chi.URLParam(r, "callerId"))
	w.Header().Set("Content-Type", "application/json")
	if callerID == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "callerId is required"})
		return
	}
	otp, ok := h.store.Get(r.Context(), callerID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "OTP not found or expired"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"otp": otp, "note": devOTPNote})
}
