package model

import "time"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // initiated on gateway side; no result yet
	TransactionStatusSucceeded TransactionStatus = "succeeded" // gateway returned result code 0
	TransactionStatusFailed    TransactionStatus = "failed"    // gateway returned a non-zero result code
)

// ResolveStatus maps a gateway result code to a transaction status.
// It is the single source of truth for "was this payment successful":
// every write of a GatewayTransaction must recompute Status through it,
// never trust an externally supplied status.
//
// Code 0 is an explicit success sentinel; a nil code means the gateway
// has not produced a result yet. The two must never be conflated.
func ResolveStatus(resultCode *int) TransactionStatus {
	if resultCode == nil {
		return TransactionStatusPending
	}
	if *resultCode == 0 {
		return TransactionStatusSucceeded
	}
	return TransactionStatusFailed
}

// GatewayTransaction is the canonical proof-of-payment record. One row per
// gateway charge attempt; written at most twice (once pending, once with a
// definitive result code), then immutable except for metadata enrichment.
type GatewayTransaction struct {
	ID             string  // UUID
	TenantID       string  // UUID of owning business
	SubscriptionID *string // set once correlated; nil when the completion raced initiation
	CorrelationID  string  // gateway checkout id issued at initiation
	Receipt        *string // gateway receipt; present only on success — the durable proof
	Phone          string  // payer MSISDN
	Amount         int64   // minor units, avoids float errors
	Currency       string
	ResultCode     *int              // nil until the gateway produces a result
	ResultDesc     string            // gateway's human-readable result text
	Status         TransactionStatus // always derived from ResultCode via ResolveStatus
	Orphaned       bool              // completion arrived with no matching initiation record
	Metadata       map[string]interface{}
	RawPayload     []byte // last raw gateway payload, kept for audit
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time // set when a definitive result code lands
}

// ApplyResult records a definitive gateway result and rederives Status.
func (t *GatewayTransaction) ApplyResult(code int, desc string, receipt *string, at time.Time) {
	t.ResultCode = &code
	t.ResultDesc = desc
	if receipt != nil && *receipt != "" {
		t.Receipt = receipt
	}
	t.Status = ResolveStatus(t.ResultCode)
	t.CompletedAt = &at
	t.UpdatedAt = at
}
