package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Billing domain errors
	ErrPlanNotFound         = errors.New("plan not found")
	ErrAlreadyFinalized     = errors.New("subscription already finalized")
	ErrInvalidBillingCycle  = errors.New("invalid billing cycle")
	ErrNotPendingEntry      = errors.New("ledger entry is not pending approval")
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrLockUnavailable      = errors.New("lock unavailable")
	ErrNoActiveSubscription = errors.New("no active subscription")
)
