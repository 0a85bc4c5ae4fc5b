package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain/ports/adapter"
)

// Ensure HTTPNotifier implements adapter.Notifier
var _ adapter.Notifier = (*HTTPNotifier)(nil)

// HTTPNotifier posts domain events to the notification subsystem. Delivery
// is at-most-once from the caller's point of view; the events endpoint is
// expected to dedupe on (event, entity_id).
type HTTPNotifier struct {
	url    string
	client *retryablehttp.Client
	log    *zerolog.Logger
}

func NewHTTPNotifier(url string, logger *zerolog.Logger) *HTTPNotifier {
	l := logger.With().Str("component", "HTTPNotifier").Logger()
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil
	return &HTTPNotifier{url: url, client: client, log: &l}
}

type eventEnvelope struct {
	Name     string                 `json:"name"`
	TenantID string                 `json:"tenant_id"`
	EntityID string                 `json:"entity_id"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	SentAt   time.Time              `json:"sent_at"`
}

func (n *HTTPNotifier) Publish(ctx context.Context, e adapter.Event) error {
	body, err := json.Marshal(eventEnvelope{
		Name:     e.Name,
		TenantID: e.TenantID,
		EntityID: e.EntityID,
		Payload:  e.Payload,
		SentAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("events endpoint returned %d", resp.StatusCode)
	}
	n.log.Debug().Str("event", e.Name).Str("entity_id", e.EntityID).Msg("event published")
	return nil
}

// NoopNotifier drops events; used when no events endpoint is configured.
type NoopNotifier struct{}

var _ adapter.Notifier = NoopNotifier{}

func (NoopNotifier) Publish(context.Context, adapter.Event) error { return nil }
