package model

// PaymentSignal is a payment-outcome notification from any trigger source
// (webhook, status poll, sweep, ledger observer). Every field except Source
// is optional: signals arrive partial, unordered and possibly duplicated,
// and the correlation resolver works with whatever is present.
type PaymentSignal struct {
	Source         string // "webhook" | "poll" | "sweep" | "admin"
	CorrelationID  string
	Receipt        string
	SubscriptionID string
	TenantID       string
	Phone          string
	Amount         int64
	ResultCode     *int
	ResultDesc     string
	Metadata       map[string]interface{}
	RawPayload     []byte
}

// Succeeded reports whether the signal represents a successful payment.
func (s PaymentSignal) Succeeded() bool {
	return ResolveStatus(s.ResultCode) == TransactionStatusSucceeded
}
