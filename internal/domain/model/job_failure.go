package model

import "time"

// JobFailure records a background job that exhausted its retry budget.
// Surfaced to operators through the admin API; never silently discarded.
type JobFailure struct {
	ID        string // ULID
	Job       string // e.g. "status_poll", "reconcile_sweep"
	EntityID  string // the transaction or subscription the job was working on
	Attempts  int
	LastError string
	CreatedAt time.Time
}
