package redis

import (
	"context"
	"encoding/json"
	"time"

	"retail-pos-billing/internal/usecase"
)

// Ensure EntitlementCache implements usecase.EntitlementCache
var _ usecase.EntitlementCache = (*EntitlementCache)(nil)

// EntitlementCache stores the per-tenant plan projection the POS read path
// checks on every request. Keys expire with the plan so a crashed invalidation
// cannot leave stale entitlements forever.
type EntitlementCache struct {
	cli RedisClient
	ttl time.Duration
}

func NewEntitlementCache(cli RedisClient, ttl time.Duration) *EntitlementCache {
	return &EntitlementCache{cli: cli, ttl: ttl}
}

type entitlementPayload struct {
	PlanID    string    `json:"plan_id"`
	Features  []string  `json:"features"`
	ExpiresAt time.Time `json:"expires_at"`
}

func entitlementKey(tenantID string) string { return "entitlements:" + tenantID }

func (c *EntitlementCache) SetEntitlements(ctx context.Context, tenantID string, planID string, features []string, expiresAt time.Time) error {
	b, err := json.Marshal(entitlementPayload{PlanID: planID, Features: features, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	ttl := c.ttl
	if until := time.Until(expiresAt); until > 0 && until < ttl {
		ttl = until
	}
	return c.cli.Set(ctx, entitlementKey(tenantID), b, ttl)
}

func (c *EntitlementCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.cli.Del(ctx, entitlementKey(tenantID))
}
