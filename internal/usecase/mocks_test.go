//go:build !integration

package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/adapter"
	"retail-pos-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// -----------------------------
// Transaction manager
// -----------------------------

type MockTxManager struct {
	mu        sync.Mutex
	LockCalls []string // tenant ids passed to LockTenant, in order
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

func (m *MockTxManager) LockTenant(_ context.Context, _ repository.Tx, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockCalls = append(m.LockCalls, tenantID)
	return nil
}

// -----------------------------
// Repositories (in-memory)
// -----------------------------

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByPaymentReference(_ context.Context, _ repository.Tx, ref string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Subscription
	for _, s := range m.store {
		if s.PaymentReference == nil || *s.PaymentReference != ref {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindActiveByTenant(_ context.Context, _ repository.Tx, tenantID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Subscription
	for _, s := range m.store {
		if s.TenantID != tenantID || s.Status != model.SubscriptionStatusActive {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindSettleableByTenant(_ context.Context, _ repository.Tx, tenantID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.TenantID == tenantID && s.Settleable() {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockSubscriptionRepo) ExpireOtherSettleable(_ context.Context, _ repository.Tx, tenantID, keepID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.TenantID == tenantID && s.ID != keepID && s.Settleable() {
			s.Status = model.SubscriptionStatusExpired
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *MockSubscriptionRepo) ListActiveLapsed(_ context.Context, _ repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.EndsAt != nil && !s.EndsAt.After(asOf) {
			cp := *s
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListScheduledDue(_ context.Context, _ repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusScheduled && s.StartsAt != nil && !s.StartsAt.After(asOf) {
			cp := *s
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CountByStatus(_ context.Context, _ repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		counts[s.Status]++
	}
	return counts, nil
}

type MockTransactionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.GatewayTransaction

	SaveFunc func(ctx context.Context, tx repository.Tx, t *model.GatewayTransaction) error
}

var _ repository.GatewayTransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{store: make(map[string]*model.GatewayTransaction)}
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.GatewayTransaction) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, t); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

func (m *MockTransactionRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.GatewayTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTransactionRepo) FindByCorrelationID(_ context.Context, _ repository.Tx, correlationID string) (*model.GatewayTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.store {
		if t.CorrelationID == correlationID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) FindByReceipt(_ context.Context, _ repository.Tx, receipt string) (*model.GatewayTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.store {
		if t.Receipt != nil && *t.Receipt == receipt {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) LinkSubscription(_ context.Context, _ repository.Tx, id, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.SubscriptionID = &subscriptionID
	t.Orphaned = false
	return nil
}

func (m *MockTransactionRepo) MergeMetadata(_ context.Context, _ repository.Tx, id string, meta map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]interface{})
	}
	for k, v := range meta {
		t.Metadata[k] = v
	}
	return nil
}

func (m *MockTransactionRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.GatewayTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.GatewayTransaction
	for _, t := range m.store {
		if t.Status == model.TransactionStatusPending && !t.CreatedAt.After(olderThan) {
			cp := *t
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockTransactionRepo) ListSucceededUnlinked(_ context.Context, _ repository.Tx, limit int) ([]*model.GatewayTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.GatewayTransaction
	for _, t := range m.store {
		if t.Status == model.TransactionStatusSucceeded && t.SubscriptionID == nil {
			cp := *t
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type MockLedgerRepo struct {
	mu    sync.RWMutex
	store map[string]*model.BillingLedgerEntry
}

var _ repository.BillingLedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{store: make(map[string]*model.BillingLedgerEntry)}
}

func (m *MockLedgerRepo) Save(_ context.Context, _ repository.Tx, e *model.BillingLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *MockLedgerRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.BillingLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockLedgerRepo) FindBySubscriptionID(_ context.Context, _ repository.Tx, subscriptionID string) (*model.BillingLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.store {
		if e.SubscriptionID == subscriptionID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockLedgerRepo) FindByCorrelationOrReceipt(_ context.Context, _ repository.Tx, correlationID, receipt string) (*model.BillingLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.store {
		if correlationID != "" && e.CorrelationID == correlationID {
			cp := *e
			return &cp, nil
		}
		if receipt != "" && e.Receipt != nil && *e.Receipt == receipt {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockLedgerRepo) SetApproval(_ context.Context, _ repository.Tx, id string, status model.ApprovalStatus, actor string, reason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.ApprovalStatus = status
	e.ApprovedBy = &actor
	e.RejectionReason = reason
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockLedgerRepo) SetWindow(_ context.Context, _ repository.Tx, id string, start, end time.Time, receipt *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.PlanStartDate = &start
	e.PlanEndDate = &end
	if receipt != nil {
		e.Receipt = receipt
	}
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockLedgerRepo) ListByApprovalStatus(_ context.Context, _ repository.Tx, status model.ApprovalStatus, limit int) ([]*model.BillingLedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.BillingLedgerEntry
	for _, e := range m.store {
		if e.ApprovalStatus == status {
			cp := *e
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type MockTenantRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Tenant
}

var _ repository.TenantRepository = (*MockTenantRepo)(nil)

func NewMockTenantRepo() *MockTenantRepo {
	return &MockTenantRepo{store: make(map[string]*model.Tenant)}
}

func (m *MockTenantRepo) Save(_ context.Context, _ repository.Tx, t *model.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *MockTenantRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTenantRepo) UpdatePlanCache(_ context.Context, _ repository.Tx, t *model.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.store[t.ID]
	if !ok {
		return domain.ErrTenantNotFound
	}
	stored.PlanID = t.PlanID
	stored.PlanExpiresAt = t.PlanExpiresAt
	stored.EnabledFeatures = append([]string(nil), t.EnabledFeatures...)
	return nil
}

type MockPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: make(map[string]*model.Plan)}
}

func (m *MockPlanRepo) Save(_ context.Context, _ repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) FindByName(_ context.Context, _ repository.Tx, name string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPlanRepo) ListActive(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type MockAuditRepo struct {
	mu     sync.Mutex
	Events []*model.AuditEvent
}

var _ repository.AuditRepository = (*MockAuditRepo)(nil)

func (m *MockAuditRepo) Append(_ context.Context, _ repository.Tx, e *model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.Events = append(m.Events, &cp)
	return nil
}

func (m *MockAuditRepo) ListByEntity(_ context.Context, _ repository.Tx, entityID string, limit int) ([]*model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuditEvent
	for _, e := range m.Events {
		if e.EntityID == entityID {
			out = append(out, e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type MockJobFailureRepo struct {
	mu       sync.Mutex
	Failures []*model.JobFailure
}

var _ repository.JobFailureRepository = (*MockJobFailureRepo)(nil)

func (m *MockJobFailureRepo) Save(_ context.Context, _ repository.Tx, f *model.JobFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.Failures = append(m.Failures, &cp)
	return nil
}

func (m *MockJobFailureRepo) ListRecent(_ context.Context, _ repository.Tx, limit int) ([]*model.JobFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.Failures
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------
// Adapters
// -----------------------------

type MockGateway struct {
	mu sync.Mutex

	InitiateChargeFunc func(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResponse, error)
	QueryStatusFunc    func(ctx context.Context, correlationID string) (model.PaymentSignal, error)

	Charges []adapter.ChargeRequest
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) InitiateCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResponse, error) {
	m.mu.Lock()
	m.Charges = append(m.Charges, req)
	m.mu.Unlock()
	if m.InitiateChargeFunc != nil {
		return m.InitiateChargeFunc(ctx, req)
	}
	return adapter.ChargeResponse{CorrelationID: "corr-" + req.Reference, ResponseDesc: "Accepted"}, nil
}

func (m *MockGateway) QueryStatus(ctx context.Context, correlationID string) (model.PaymentSignal, error) {
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, correlationID)
	}
	return model.PaymentSignal{Source: "poll", CorrelationID: correlationID}, nil
}

type MockNotifier struct {
	mu     sync.Mutex
	Events []adapter.Event

	PublishFunc func(ctx context.Context, e adapter.Event) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Publish(ctx context.Context, e adapter.Event) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return nil
}

type MockEntitlementCache struct {
	mu          sync.Mutex
	Sets        []string // tenant ids refreshed
	Invalidated []string
}

func (m *MockEntitlementCache) SetEntitlements(_ context.Context, tenantID, _ string, _ []string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets = append(m.Sets, tenantID)
	return nil
}

func (m *MockEntitlementCache) Invalidate(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidated = append(m.Invalidated, tenantID)
	return nil
}
