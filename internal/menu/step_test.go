package menu

import "testing"

func TestParse(t *testing.T) {
	testCases := []struct {
		text   string
		branch Branch
		state  State
		parts  int
	}{
		{"", BranchNone, StateRoot, 0},
		{"**", BranchNone, StateInvalid, 0},
		{"1", BranchRegister, StateRegisterAskID, 1},
		{"1*8001015009087", BranchRegister, StateRegisterAskPIN, 2},
		{"1*8001015009087*1234", BranchRegister, StateRegisterSubmit, 3},
		{"1**8001015009087*1234", BranchRegister, StateRegisterSubmit, 3},
		{"1*a*b*c", BranchRegister, StateInvalid, 4},
		{"2", BranchBalance, StateBalanceAskPIN, 1},
		{"2*1234", BranchBalance, StateBalanceSubmit, 2},
		{"3", BranchSend, StateSendAskRecipient, 1},
		{"3*0820000000", BranchSend, StateSendAskAmount, 2},
		{"3*0820000000*50", BranchSend, StateSendAskPIN, 3},
		{"3*0820000000*50*1234", BranchSend, StateSendSubmit, 4},
		{"4", BranchVoucher, StateVoucherAskCode, 1},
		{"4*abc", BranchVoucher, StateVoucherSendOTP, 2},
		{"4*abc*123456", BranchVoucher, StateVoucherVerifyOTP, 3},
		{"5", BranchExit, StateExit, 1},
		{"5*1", BranchExit, StateInvalid, 2},
		{"9", BranchNone, StateInvalid, 1},
		{" 1", BranchNone, StateInvalid, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			step := Parse(tc.text)
			if step.Branch != tc.branch || step.State != tc.state || len(step.Parts) != tc.parts {
				t.Errorf("Parse(%q) = {%v %v %d parts}, want {%v %v %d parts}",
					tc.text, step.Branch, step.State, len(step.Parts), tc.branch, tc.state, tc.parts)
			}
		})
	}
}

func TestStep_Arg(t *testing.T) {
	step := Parse("3* 0820000000 *50")
	if got := step.Arg(1); got != "0820000000" {
		t.Errorf("Arg(1) = %q, want trimmed recipient", got)
	}
	if got := step.Arg(5); got != "" {
		t.Errorf("Arg(5) = %q, want empty", got)
	}
	if got := step.Arg(-1); got != "" {
		t.Errorf("Arg(-1) = %q, want empty", got)
	}
}

func TestBranchString(t *testing.T) {
	if BranchSend.String() != "send" || Branch(42).String() != "unknown" {
		t.Errorf("unexpected branch names %q %q", BranchSend, Branch(42))
	}
}
