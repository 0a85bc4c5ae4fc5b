package adapter

import "context"

// Event is a fire-and-forget domain notification for the external
// notification subsystem (email / realtime push).
type Event struct {
	Name     string // e.g. "subscription.activated"
	TenantID string
	EntityID string
	Payload  map[string]interface{}
}

// Notifier publishes domain events. Failure to notify must never roll back
// the state transition that produced the event; callers log and move on.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}
