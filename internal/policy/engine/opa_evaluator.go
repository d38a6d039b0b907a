package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const decisionQuery = "data.ussd.transfer.decision"

// DefaultRegoPolicy mirrors DefaultDecision. A policy file may replace it; it must define
// data.ussd.transfer.decision as {"allow": bool, "reason": string}.
const DefaultRegoPolicy = `package ussd.transfer

default reason = ""

reason = "invalid_recipient" if {
	input.to == ""
} else = "self_transfer" if {
	input.to == input.from
} else = "invalid_amount" if {
	input.amount <= 0
} else = "limit_exceeded" if {
	input.max_amount > 0
	input.amount > input.max_amount
}

default allow = false

allow if {
	reason == ""
}

decision = {"allow": allow, "reason": reason}
`

// OPAEvaluator evaluates transfer policy using OPA Rego. The policy is compiled once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (DefaultRegoPolicy when empty) and prepares the decision query.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if strings.TrimSpace(policy) == "" {
		policy = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"transfer.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile transfer policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare transfer policy: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// LoadPolicyFile reads a Rego policy from path. An empty path returns the default policy.
func LoadPolicyFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRegoPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transfer policy: %w", err)
	}
	return string(b), nil
}

// HealthCheck evaluates a known-good input. Returns nil when the engine answers with a decision.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, TransferInput{From: "health-a", To: "health-b", Amount: 1})
	return err
}

// EvaluateTransfer evaluates the transfer policy. On evaluation failure it logs, falls back to
// DefaultDecision and returns no error.
func (e *OPAEvaluator) EvaluateTransfer(ctx context.Context, in TransferInput) (Decision, error) {
	d, err := e.eval(ctx, in)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using defaults", err)
		return DefaultDecision(in), nil
	}
	return d, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, in TransferInput) (Decision, error) {
	input := map[string]interface{}{
		"from":       in.From,
		"to":         in.To,
		"amount":     in.Amount,
		"max_amount": in.MaxAmount,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("policy query returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("policy decision has type %T", rs[0].Expressions[0].Value)
	}
	allow, ok := obj["allow"].(bool)
	if !ok {
		return Decision{}, fmt.Errorf("policy decision missing allow")
	}
	reason, _ := obj["reason"].(string)
	if !allow && reason == "" {
		reason = ReasonInvalidAmount
	}
	return Decision{Allow: allow, Reason: reason}, nil
}
