package engine

import "context"

// Reasons a transfer is refused. Empty means allowed.
const (
	ReasonInvalidRecipient = "invalid_recipient"
	ReasonSelfTransfer     = "self_transfer"
	ReasonInvalidAmount    = "invalid_amount"
	ReasonLimitExceeded    = "limit_exceeded"
)

// TransferInput is the policy input for a Send Money request.
type TransferInput struct {
	From      string
	To        string
	Amount    int64
	MaxAmount int64 // 0 means no limit
}

// Decision is the outcome of a transfer policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator evaluates transfer policy using OPA or other engines.
type Evaluator interface {
	EvaluateTransfer(ctx context.Context, in TransferInput) (Decision, error)
}

// DefaultDecision applies the built-in transfer rules without a policy engine.
func DefaultDecision(in TransferInput) Decision {
	switch {
	case in.To == "":
		return Decision{Reason: ReasonInvalidRecipient}
	case in.To == in.From:
		return Decision{Reason: ReasonSelfTransfer}
	case in.Amount <= 0:
		return Decision{Reason: ReasonInvalidAmount}
	case in.MaxAmount > 0 && in.Amount > in.MaxAmount:
		return Decision{Reason: ReasonLimitExceeded}
	}
	return Decision{Allow: true}
}
