package adapter

import (
	"context"

	"retail-pos-billing/internal/domain/model"
)

// ChargeRequest describes a mobile-money charge to push to a payer.
type ChargeRequest struct {
	Phone       string
	Amount      int64
	Currency    string
	Reference   string // our subscription id, echoed back by the gateway
	Description string
}

// ChargeResponse is the gateway's acknowledgement of an initiated charge.
// CorrelationID matches the later asynchronous completion signal to this
// attempt; no receipt exists until the payer completes.
type ChargeResponse struct {
	CorrelationID string
	ResponseDesc  string
}

// PaymentGateway is the hex port for the mobile-money provider.
type PaymentGateway interface {
	Name() string

	// InitiateCharge pushes a payment prompt to the payer's phone and returns
	// the correlation id for the attempt.
	InitiateCharge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)

	// QueryStatus actively asks the gateway for the outcome of an earlier
	// charge. Used by the status-poll job; must be called outside any
	// database transaction. A pending outcome returns a signal with a nil
	// result code, not an error.
	QueryStatus(ctx context.Context, correlationID string) (model.PaymentSignal, error)
}
