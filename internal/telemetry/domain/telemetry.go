package domain

import (
	"encoding/json"
	"time"
)

// Event types emitted by the USSD menu.
const (
	EventSessionStart    = "session_start"
	EventRegistered      = "registered"
	EventTransfer        = "transfer"
	EventVoucherRedeemed = "voucher_redeemed"
	EventOTPIssued       = "otp_issued"
	EventPINFailure      = "pin_failure"
	EventOTPFailure      = "otp_failure"
	EventSessionEnded    = "session_ended"
	EventRateLimited     = "rate_limited"
	EventInternalError   = "internal_error"
)

// SourceUSSD is the source label for events raised while handling a USSD turn.
const SourceUSSD = "ussd"

// Event is a wallet activity event. It is serialized as JSON onto Kafka and pushed to Loki by the worker.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"eventType"`
	CallerID  string          `json:"callerId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
