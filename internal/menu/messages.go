package menu

import "fmt"

// Prompts and terminal messages shown to the caller.
const (
	msgRoot = "Welcome to Ubuntu Wallet\n" +
		"1. Register\n" +
		"2. Check Balance\n" +
		"3. Send Money\n" +
		"4. Cash-in (Voucher)\n" +
		"5. Exit"

	msgAskID             = "Enter your national ID number:"
	msgAskNewPIN         = "Enter a 4-digit PIN:"
	msgPINFormat         = "PIN must be 4 digits."
	msgRegistered        = "Registration successful. You can now use the wallet."
	msgAskPIN            = "Enter your 4-digit PIN:"
	msgNotRegistered     = "User not registered."
	msgInvalidPIN        = "Invalid PIN."
	msgAskRecipient      = "Enter recipient phone number:"
	msgAskAmount         = "Enter amount in Rands:"
	msgAskConfirmPIN     = "Enter your PIN to confirm:"
	msgInsufficientFunds = "Insufficient funds."
	msgInvalidAmount     = "Invalid amount."
	msgBalanceLimit      = "Balance limit exceeded."
	msgSelfTransfer      = "Cannot send money to yourself."
	msgInvalidRecipient  = "Invalid recipient."
	msgAskVoucher        = "Enter voucher code:"
	msgInvalidVoucher    = "Invalid voucher code."
	msgVoucherRedeemed   = "Voucher already redeemed."
	msgOTPSent           = "An OTP was sent to your phone. Enter OTP:"
	msgNoOTP             = "No OTP found. Start again."
	msgOTPExpired        = "OTP expired. Please request a new voucher redemption."
	msgInvalidOTP        = "Invalid OTP."
	msgVoucherGone       = "Voucher invalid or already redeemed."
	msgInvalidChoice     = "Invalid choice."
	msgGoodbye           = "Goodbye."
	msgServerError       = "Server error"
)

func formatAmount(n int64) string {
	return fmt.Sprintf("R%d", n)
}

func msgBalance(balance int64) string {
	return "Your balance is " + formatAmount(balance)
}

func msgSent(amount int64, to string, balance int64) string {
	return fmt.Sprintf("Sent %s to %s. New balance %s", formatAmount(amount), to, formatAmount(balance))
}

func msgVoucherCredited(amount, balance int64) string {
	return fmt.Sprintf("Voucher redeemed: %s credited. New balance %s", formatAmount(amount), formatAmount(balance))
}
