// Package menu implements the USSD menu state machine: it turns one accumulated-input turn into
// the prompt or final message for the caller, applying account, voucher and OTP side effects.
package menu

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/Gift-Esethu/Ussd-Server/internal/account/domain"
	accountservice "github.com/Gift-Esethu/Ussd-Server/internal/account/service"
	"github.com/Gift-Esethu/Ussd-Server/internal/audit"
	otpdomain "github.com/Gift-Esethu/Ussd-Server/internal/otp/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/policy/engine"
	sessiondomain "github.com/Gift-Esethu/Ussd-Server/internal/session/domain"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry"
	telemetrydomain "github.com/Gift-Esethu/Ussd-Server/internal/telemetry/domain"
	telemetryotel "github.com/Gift-Esethu/Ussd-Server/internal/telemetry/otel"
	voucherdomain "github.com/Gift-Esethu/Ussd-Server/internal/voucher/domain"
	voucherservice "github.com/Gift-Esethu/Ussd-Server/internal/voucher/service"
)

// Request is one USSD turn.
type Request struct {
	SessionID string
	CallerID  string
	// Text is the accumulated input, answers joined by Separator.
	Text string
}

// Response is the reply to a turn. Final responses close the session on the handset.
type Response struct {
	Final   bool
	Message string
	// Fault marks a "Server error" reply produced by an internal failure.
	Fault bool
}

// String renders the response in the gateway's CON/END form.
func (r Response) String() string {
	if r.Final {
		return "END " + r.Message
	}
	return "CON " + r.Message
}

func prompt(msg string) Response { return Response{Message: msg} }
func end(msg string) Response    { return Response{Final: true, Message: msg} }

// Accounts is the ledger surface used by the menu.
type Accounts interface {
	voucherservice.Crediter
	Get(ctx context.Context, callerID string) (*domain.Account, error)
	VerifyCredential(acc *domain.Account, pin string) bool
	CreateOrUpdateCredential(ctx context.Context, callerID, idNumber, pin string, extra ...store.Op) (*domain.Account, error)
	Transfer(ctx context.Context, from, to string, amount int64, extra ...store.Op) (*domain.Account, error)
}

// Vouchers is the voucher registry surface used by the menu.
type Vouchers interface {
	Lookup(ctx context.Context, code string) (*voucherdomain.Voucher, error)
	RedeemInto(ctx context.Context, code, callerID string, ledger voucherservice.Crediter, extra ...store.Op) (*voucherdomain.Voucher, *domain.Account, error)
}

// OTPs is the one-time code surface used by the menu.
type OTPs interface {
	Issue(ctx context.Context, callerID, voucherCode string) (string, error)
	Verify(ctx context.Context, callerID, code string) (otpdomain.Result, *otpdomain.Record, error)
	Consume(ctx context.Context, callerID string) error
	ConsumeOp(callerID string) store.Op
}

// Sessions is the session store surface used by the menu.
type Sessions interface {
	Lock(id string) (unlock func())
	GetOrCreate(ctx context.Context, id, callerID string) (*sessiondomain.Session, error)
	Update(ctx context.Context, sess *sessiondomain.Session) error
	Clear(ctx context.Context, id string) error
	ClearOp(id string) store.Op
}

// Config wires the machine's collaborators. Accounts, Vouchers, OTPs and Sessions are required.
type Config struct {
	Accounts Accounts
	Vouchers Vouchers
	OTPs     OTPs
	Sessions Sessions
	// Policy decides whether a transfer may proceed. Nil applies engine.DefaultDecision.
	Policy engine.Evaluator
	// MaxTransferAmount caps a single transfer; 0 means no limit.
	MaxTransferAmount int64
	Audit             audit.AuditLogger
	Events            telemetry.EventEmitter
	Metrics           *telemetryotel.Metrics
}

// Machine handles USSD turns.
type Machine struct {
	cfg Config
}

// New returns a Machine for cfg.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// anonymousSessionPrefix keys the session of a callback that carries no session id. Such
// callbacks share one session per caller.
const anonymousSessionPrefix = "anon:"

// turn carries the per-request state through a branch handler.
type turn struct {
	req  Request
	step Step
	sess *sessiondomain.Session
}

// Handle processes one turn. All turns of a session are serialized. Domain failures become final
// messages; internal failures and panics become a final "Server error" with Fault set.
func (m *Machine) Handle(ctx context.Context, req Request) (resp Response) {
	req.CallerID = strings.TrimSpace(req.CallerID)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("menu: panic handling session %s: %v\n%s", req.SessionID, r, debug.Stack())
			resp = m.fault(req)
		}
		m.cfg.Metrics.Turn(ctx, resp.Final)
	}()

	step := Parse(req.Text)
	if step.State == StateRoot {
		m.emit(telemetrydomain.EventSessionStart, req, nil)
		return prompt(msgRoot)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = anonymousSessionPrefix + req.CallerID
	}

	unlock := m.cfg.Sessions.Lock(req.SessionID)
	defer unlock()

	sess, err := m.cfg.Sessions.GetOrCreate(ctx, req.SessionID, req.CallerID)
	if err != nil {
		log.Printf("menu: load session %s: %v", req.SessionID, err)
		return m.fault(req)
	}
	t := &turn{req: req, step: step, sess: sess}

	resp, err = m.dispatch(ctx, t)
	if err != nil {
		log.Printf("menu: session %s branch %s: %v", req.SessionID, t.step.Branch, err)
		return m.fault(req)
	}
	return resp
}

func (m *Machine) fault(req Request) Response {
	m.emit(telemetrydomain.EventInternalError, req, nil)
	return Response{Final: true, Message: msgServerError, Fault: true}
}

func (m *Machine) dispatch(ctx context.Context, t *turn) (Response, error) {
	switch t.step.State {
	case StateExit:
		if err := m.cfg.Sessions.Clear(ctx, t.req.SessionID); err != nil {
			return Response{}, err
		}
		m.emit(telemetrydomain.EventSessionEnded, t.req, nil)
		return end(msgGoodbye), nil

	case StateRegisterAskID:
		return prompt(msgAskID), nil
	case StateRegisterAskPIN:
		t.sess.PendingIDNumber = t.step.Arg(1)
		if err := m.cfg.Sessions.Update(ctx, t.sess); err != nil {
			return Response{}, err
		}
		return prompt(msgAskNewPIN), nil
	case StateRegisterSubmit:
		return m.register(ctx, t)

	case StateBalanceAskPIN:
		return prompt(msgAskPIN), nil
	case StateBalanceSubmit:
		return m.balance(ctx, t)

	case StateSendAskRecipient:
		return prompt(msgAskRecipient), nil
	case StateSendAskAmount:
		t.sess.PendingRecipient = t.step.Arg(1)
		if err := m.cfg.Sessions.Update(ctx, t.sess); err != nil {
			return Response{}, err
		}
		return prompt(msgAskAmount), nil
	case StateSendAskPIN:
		return m.sendAmount(ctx, t)
	case StateSendSubmit:
		return m.sendSubmit(ctx, t)

	case StateVoucherAskCode:
		return prompt(msgAskVoucher), nil
	case StateVoucherSendOTP:
		return m.voucherSendOTP(ctx, t)
	case StateVoucherVerifyOTP:
		return m.voucherVerifyOTP(ctx, t)
	}
	return end(msgInvalidChoice), nil
}

func (m *Machine) register(ctx context.Context, t *turn) (Response, error) {
	pin := t.step.Arg(2)
	if !validPIN(pin) {
		return end(msgPINFormat), nil
	}
	idNumber := t.sess.PendingIDNumber
	if idNumber == "" {
		idNumber = t.step.Arg(1)
	}
	if _, err := m.cfg.Accounts.CreateOrUpdateCredential(ctx, t.req.CallerID, idNumber, pin, m.cfg.Sessions.ClearOp(t.req.SessionID)); err != nil {
		if errors.Is(err, accountservice.ErrInvalidCallerID) {
			return end(msgNotRegistered), nil
		}
		return Response{}, fmt.Errorf("register: %w", err)
	}
	m.audit(ctx, t.req.CallerID, audit.ActionRegister, "account", "")
	m.emit(telemetrydomain.EventRegistered, t.req, nil)
	return end(msgRegistered), nil
}

func (m *Machine) balance(ctx context.Context, t *turn) (Response, error) {
	acc, resp, err := m.authenticate(ctx, t, t.step.Arg(1))
	if acc == nil {
		return resp, err
	}
	return end(msgBalance(acc.Balance)), nil
}

// authenticate loads the caller's account and checks pin. A nil account means the returned
// response (or error) ends the turn.
func (m *Machine) authenticate(ctx context.Context, t *turn, pin string) (*domain.Account, Response, error) {
	if t.req.CallerID == "" {
		return nil, end(msgNotRegistered), nil
	}
	acc, err := m.cfg.Accounts.Get(ctx, t.req.CallerID)
	if err != nil {
		return nil, Response{}, fmt.Errorf("load account: %w", err)
	}
	if acc == nil {
		return nil, end(msgNotRegistered), nil
	}
	if !m.cfg.Accounts.VerifyCredential(acc, pin) {
		m.audit(ctx, t.req.CallerID, audit.ActionPINFailure, "account", t.step.Branch.String())
		m.emit(telemetrydomain.EventPINFailure, t.req, map[string]any{"branch": t.step.Branch.String()})
		m.cfg.Metrics.AuthFailure(ctx, "pin")
		return nil, end(msgInvalidPIN), nil
	}
	return acc, Response{}, nil
}

// checkTransfer parses amount and asks the policy whether caller may send it to recipient.
// A non-empty message means the transfer is refused.
func (m *Machine) checkTransfer(ctx context.Context, callerID, recipient, amount string) (int64, string) {
	n, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
	if err != nil {
		n = 0
	}
	in := engine.TransferInput{From: callerID, To: recipient, Amount: n, MaxAmount: m.cfg.MaxTransferAmount}
	var decision engine.Decision
	if m.cfg.Policy != nil {
		if decision, err = m.cfg.Policy.EvaluateTransfer(ctx, in); err != nil {
			log.Printf("menu: transfer policy: %v", err)
			decision = engine.DefaultDecision(in)
		}
	} else {
		decision = engine.DefaultDecision(in)
	}
	if decision.Allow {
		return n, ""
	}
	switch decision.Reason {
	case engine.ReasonInvalidRecipient:
		return 0, msgInvalidRecipient
	case engine.ReasonSelfTransfer:
		return 0, msgSelfTransfer
	default:
		return 0, msgInvalidAmount
	}
}

func (m *Machine) sendAmount(ctx context.Context, t *turn) (Response, error) {
	if t.req.CallerID == "" {
		return end(msgNotRegistered), nil
	}
	recipient := t.sess.PendingRecipient
	if recipient == "" {
		recipient = t.step.Arg(1)
	}
	amount, refusal := m.checkTransfer(ctx, t.req.CallerID, recipient, t.step.Arg(2))
	if refusal != "" {
		return end(refusal), nil
	}
	t.sess.PendingRecipient = recipient
	t.sess.PendingAmount = amount
	if err := m.cfg.Sessions.Update(ctx, t.sess); err != nil {
		return Response{}, err
	}
	return prompt(msgAskConfirmPIN), nil
}

func (m *Machine) sendSubmit(ctx context.Context, t *turn) (Response, error) {
	acc, resp, err := m.authenticate(ctx, t, t.step.Arg(3))
	if acc == nil {
		return resp, err
	}
	recipient, amount := t.sess.PendingRecipient, t.sess.PendingAmount
	if recipient == "" || amount <= 0 {
		// The session was replaced mid-flow; rebuild the transfer from the answers.
		var refusal string
		recipient = t.step.Arg(1)
		if amount, refusal = m.checkTransfer(ctx, t.req.CallerID, recipient, t.step.Arg(2)); refusal != "" {
			return end(refusal), nil
		}
	}
	sender, err := m.cfg.Accounts.Transfer(ctx, t.req.CallerID, recipient, amount, m.cfg.Sessions.ClearOp(t.req.SessionID))
	switch {
	case errors.Is(err, accountservice.ErrInsufficientFunds):
		return end(msgInsufficientFunds), nil
	case errors.Is(err, accountservice.ErrAccountNotFound):
		return end(msgNotRegistered), nil
	case errors.Is(err, accountservice.ErrSameAccount):
		return end(msgSelfTransfer), nil
	case errors.Is(err, accountservice.ErrInvalidCallerID):
		return end(msgInvalidRecipient), nil
	case errors.Is(err, accountservice.ErrInvalidAmount):
		return end(msgInvalidAmount), nil
	case errors.Is(err, accountservice.ErrBalanceOverflow):
		return end(msgBalanceLimit), nil
	case err != nil:
		return Response{}, fmt.Errorf("transfer: %w", err)
	}
	m.audit(ctx, t.req.CallerID, audit.ActionTransfer, recipient, strconv.FormatInt(amount, 10))
	m.emit(telemetrydomain.EventTransfer, t.req, map[string]any{"to": recipient, "amount": amount})
	m.cfg.Metrics.Transfer(ctx, amount)
	return end(msgSent(amount, recipient, sender.Balance)), nil
}

func (m *Machine) voucherSendOTP(ctx context.Context, t *turn) (Response, error) {
	if t.req.CallerID == "" {
		return end(msgNotRegistered), nil
	}
	code := voucherdomain.NormalizeCode(t.step.Arg(1))
	v, err := m.cfg.Vouchers.Lookup(ctx, code)
	if err != nil {
		return Response{}, fmt.Errorf("lookup voucher: %w", err)
	}
	if v == nil {
		return end(msgInvalidVoucher), nil
	}
	if v.Redeemed {
		return end(msgVoucherRedeemed), nil
	}
	if _, err := m.cfg.OTPs.Issue(ctx, t.req.CallerID, v.Code); err != nil {
		return Response{}, fmt.Errorf("issue otp: %w", err)
	}
	m.emit(telemetrydomain.EventOTPIssued, t.req, map[string]any{"voucher": v.Code})
	return prompt(msgOTPSent), nil
}

func (m *Machine) voucherVerifyOTP(ctx context.Context, t *turn) (Response, error) {
	if t.req.CallerID == "" {
		return end(msgNotRegistered), nil
	}
	result, rec, err := m.cfg.OTPs.Verify(ctx, t.req.CallerID, t.step.Arg(2))
	if err != nil {
		return Response{}, fmt.Errorf("verify otp: %w", err)
	}
	switch result {
	case otpdomain.ResultAbsent:
		return end(msgNoOTP), nil
	case otpdomain.ResultExpired:
		if err := m.cfg.Sessions.Clear(ctx, t.req.SessionID); err != nil {
			return Response{}, err
		}
		return end(msgOTPExpired), nil
	case otpdomain.ResultMismatch:
		m.audit(ctx, t.req.CallerID, audit.ActionOTPFailure, "otp", rec.VoucherCode)
		m.emit(telemetrydomain.EventOTPFailure, t.req, nil)
		m.cfg.Metrics.AuthFailure(ctx, "otp")
		return end(msgInvalidOTP), nil
	}

	v, acc, err := m.cfg.Vouchers.RedeemInto(ctx, rec.VoucherCode, t.req.CallerID, m.cfg.Accounts,
		m.cfg.OTPs.ConsumeOp(t.req.CallerID), m.cfg.Sessions.ClearOp(t.req.SessionID))
	if errors.Is(err, voucherservice.ErrVoucherNotFound) || errors.Is(err, voucherservice.ErrVoucherRedeemed) {
		if err := m.cfg.OTPs.Consume(ctx, t.req.CallerID); err != nil {
			return Response{}, err
		}
		return end(msgVoucherGone), nil
	}
	if errors.Is(err, accountservice.ErrBalanceOverflow) {
		if err := m.cfg.OTPs.Consume(ctx, t.req.CallerID); err != nil {
			return Response{}, err
		}
		return end(msgBalanceLimit), nil
	}
	if err != nil {
		return Response{}, fmt.Errorf("redeem voucher: %w", err)
	}
	m.audit(ctx, t.req.CallerID, audit.ActionVoucherRedeem, v.Code, strconv.FormatInt(v.Amount, 10))
	m.emit(telemetrydomain.EventVoucherRedeemed, t.req, map[string]any{"voucher": v.Code, "amount": v.Amount})
	m.cfg.Metrics.VoucherRedeemed(ctx)
	return end(msgVoucherCredited(v.Amount, acc.Balance)), nil
}

func (m *Machine) audit(ctx context.Context, callerID, action, resource, metadata string) {
	if m.cfg.Audit != nil {
		m.cfg.Audit.LogEvent(ctx, callerID, action, resource, metadata)
	}
}

func (m *Machine) emit(eventType string, req Request, metadata map[string]any) {
	if m.cfg.Events == nil {
		return
	}
	telemetry.EmitAsync(m.cfg.Events, telemetry.NewEvent(eventType, req.CallerID, req.SessionID, metadata))
}

// validPIN reports whether pin is exactly four ASCII digits.
func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
