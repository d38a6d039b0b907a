package menu

import "strings"

// Separator joins the answers of successive turns in the accumulated input.
const Separator = "*"

// Branch is a top-level menu option.
type Branch int

const (
	BranchNone Branch = iota
	BranchRegister
	BranchBalance
	BranchSend
	BranchVoucher
	BranchExit
)

var branchNames = map[Branch]string{
	BranchNone:     "none",
	BranchRegister: "register",
	BranchBalance:  "balance",
	BranchSend:     "send",
	BranchVoucher:  "voucher",
	BranchExit:     "exit",
}

func (b Branch) String() string {
	if s, ok := branchNames[b]; ok {
		return s
	}
	return "unknown"
}

// State is the step a turn has reached inside its branch.
type State int

const (
	StateInvalid State = iota
	StateRoot

	StateRegisterAskID
	StateRegisterAskPIN
	StateRegisterSubmit

	StateBalanceAskPIN
	StateBalanceSubmit

	StateSendAskRecipient
	StateSendAskAmount
	StateSendAskPIN
	StateSendSubmit

	StateVoucherAskCode
	StateVoucherSendOTP
	StateVoucherVerifyOTP

	StateExit
)

// branchStates lists, per branch, the state reached after 1, 2, ... turns.
var branchStates = map[Branch][]State{
	BranchRegister: {StateRegisterAskID, StateRegisterAskPIN, StateRegisterSubmit},
	BranchBalance:  {StateBalanceAskPIN, StateBalanceSubmit},
	BranchSend:     {StateSendAskRecipient, StateSendAskAmount, StateSendAskPIN, StateSendSubmit},
	BranchVoucher:  {StateVoucherAskCode, StateVoucherSendOTP, StateVoucherVerifyOTP},
	BranchExit:     {StateExit},
}

var selectors = map[string]Branch{
	"1": BranchRegister,
	"2": BranchBalance,
	"3": BranchSend,
	"4": BranchVoucher,
	"5": BranchExit,
}

// Step is a parsed turn: the branch selected by the first answer, the state reached
// by the number of answers, and the answers themselves.
type Step struct {
	Branch Branch
	State  State
	Parts  []string
}

// Arg returns answer i trimmed, or "" when there is no such answer.
func (s Step) Arg(i int) string {
	if i < 0 || i >= len(s.Parts) {
		return ""
	}
	return strings.TrimSpace(s.Parts[i])
}

// Parse turns the accumulated input into a Step. Empty segments are discarded.
// The empty input is the root menu; any unknown selector or turn count is StateInvalid.
func Parse(text string) Step {
	if text == "" {
		return Step{State: StateRoot}
	}
	var parts []string
	for _, p := range strings.Split(text, Separator) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	step := Step{Parts: parts}
	if len(parts) == 0 {
		return step
	}
	branch, ok := selectors[parts[0]]
	if !ok {
		return step
	}
	step.Branch = branch
	states := branchStates[branch]
	if len(parts) <= len(states) {
		step.State = states[len(parts)-1]
	}
	return step
}
