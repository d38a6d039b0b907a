// Package handler is the USSD gateway callback: it decodes a turn, runs it through the menu
// and writes the CON/END reply as plain text.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gift-Esethu/Ussd-Server/internal/menu"
	"github.com/Gift-Esethu/Ussd-Server/internal/ratelimit"
	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry"
	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry/domain"
)

// maxBodyBytes caps a gateway callback body.
const maxBodyBytes = 16 << 10

const msgRateLimited = "Too many requests. Try again later."

// Turner runs one USSD turn. Implemented by *menu.Machine.
type Turner interface {
	Handle(ctx context.Context, req menu.Request) menu.Response
}

// Handler serves POST /ussd.
type Handler struct {
	menu    Turner
	limiter ratelimit.Limiter
	events  telemetry.EventEmitter
}

// NewHandler returns a USSD handler. limiter may be nil (no limiting).
func NewHandler(m Turner, limiter ratelimit.Limiter) *Handler {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	return &Handler{menu: m, limiter: limiter}
}

// SetEvents sets the emitter that receives rate_limited events. nil disables them.
func (h *Handler) SetEvents(e telemetry.EventEmitter) {
	h.events = e
}

// callback is the gateway's request body, in form or JSON encoding.
type callback struct {
	SessionID   string `json:"sessionId"`
	ServiceCode string `json:"serviceCode"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
}

// ServeUSSD handles one gateway callback.
func (h *Handler) ServeUSSD(w http.ResponseWriter, r *http.Request) {
	cb, err := decodeCallback(r)
	if err != nil {
		log.Printf("ussd: decode callback: %v", err)
		writeText(w, http.StatusBadRequest, "END Invalid request")
		return
	}
	caller := strings.TrimSpace(cb.PhoneNumber)

	allowed, err := h.limiter.Allow(r.Context(), caller)
	if err != nil {
		log.Printf("ussd: rate limiter: %v", err)
	}
	if !allowed {
		log.Printf("ussd: rate limited caller %s session %s", caller, cb.SessionID)
		telemetry.EmitAsync(h.events, telemetry.NewEvent(domain.EventRateLimited, caller, cb.SessionID, nil))
		writeText(w, http.StatusOK, "END "+msgRateLimited)
		return
	}

	resp := h.menu.Handle(r.Context(), menu.Request{SessionID: cb.SessionID, CallerID: caller, Text: cb.Text})
	status := http.StatusOK
	if resp.Fault {
		log.Printf("ussd: server error for session %s (service code %q)", cb.SessionID, cb.ServiceCode)
		status = http.StatusInternalServerError
	}
	writeText(w, status, resp.String())
}

func decodeCallback(r *http.Request) (callback, error) {
	var cb callback
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return cb, err
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if len(strings.TrimSpace(string(body))) == 0 {
			return cb, nil
		}
		err := json.Unmarshal(body, &cb)
		return cb, err
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return cb, err
	}
	cb.SessionID = values.Get("sessionId")
	cb.ServiceCode = values.Get("serviceCode")
	cb.PhoneNumber = values.Get("phoneNumber")
	cb.Text = values.Get("text")
	return cb, nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		log.Printf("ussd: write response: %v", err)
	}
}
