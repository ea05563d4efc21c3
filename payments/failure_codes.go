package payments

// Failure categories for payouts that could not be delivered.
const (
	FailureInsufficientFunds = "insufficient_funds"
	FailureAccountClosed     = "account_closed"
	FailureInvalidAccount    = "invalid_account"
	FailureBankDeclined      = "bank_declined"
	FailureTechnicalError    = "technical_error"
	FailureUnknown           = "unknown"
)

var failureCategories = map[string]string{
	"insufficient_funds":     FailureInsufficientFunds,
	"account_closed":         FailureAccountClosed,
	"invalid_account_number": FailureInvalidAccount,
	"invalid_routing_number": FailureInvalidAccount,
	"debit_not_authorized":   FailureBankDeclined,
}

// ClassifyFailureCode maps a Stripe payout failure code to one of our
// failure categories. Codes we have not seen before are technical errors;
// a missing code is unknown.
func ClassifyFailureCode(code string) string {
	if code == "" {
		return FailureUnknown
	}
	if category, ok := failureCategories[code]; ok {
		return category
	}
	return FailureTechnicalError
}
