package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"retail-pos-billing/internal/domain"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/infra/metrics"
)

type checkoutRequest struct {
	TenantID     string `json:"tenant_id"`
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	Phone        string `json:"phone"`
}

// handleCheckout starts a subscription payment for a tenant.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	claims := ClaimsFrom(r.Context())
	if claims != nil && claims.Role == "tenant" {
		// Tenant tokens can only start checkouts for themselves.
		req.TenantID = claims.Subject
	}
	if req.TenantID == "" || req.PlanID == "" {
		http.Error(w, "tenant_id and plan_id are required", http.StatusBadRequest)
		return
	}

	sub, txn, err := s.checkoutUC.Initiate(r.Context(), req.TenantID, req.PlanID, req.BillingCycle, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTenantNotFound), errors.Is(err, domain.ErrNotFound):
			http.Error(w, "tenant or plan not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidBillingCycle), errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.log.Error().Err(err).Msg("checkout failed")
			http.Error(w, "Failed to start checkout", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		SubscriptionID string `json:"subscription_id"`
		CorrelationID  string `json:"correlation_id"`
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
		Status         string `json:"status"`
	}{
		SubscriptionID: sub.ID,
		CorrelationID:  txn.CorrelationID,
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		Status:         string(sub.Status),
	})
}

// handleBillingQueue lists ledger entries awaiting an operator decision.
func (s *Server) handleBillingQueue(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.adminUC.PendingQueue(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list queue", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*model.BillingLedgerEntry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Data  []*model.BillingLedgerEntry `json:"data"`
		Total int                         `json:"total"`
	}{Data: entries, Total: len(entries)})
}

// handleApprove activates the subscription behind a ledger entry.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	claims := ClaimsFrom(r.Context())

	started := time.Now()
	err := s.adminUC.Approve(r.Context(), entryID, claims.Subject)
	metrics.ObserveReconcile("admin", outcomeLabel(err), int(time.Since(started).Milliseconds()))
	if err == nil {
		metrics.IncActivation("admin")
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "entry not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrNotPendingEntry):
			http.Error(w, "entry is not pending", http.StatusConflict)
		default:
			s.log.Error().Err(err).Str("entry_id", entryID).Msg("approve failed")
			http.Error(w, "Failed to approve", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// handleReject marks the subscription behind a ledger entry as rejected.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	claims := ClaimsFrom(r.Context())

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	err := s.adminUC.Reject(r.Context(), entryID, claims.Subject, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "entry not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrNotPendingEntry):
			http.Error(w, "entry is not pending", http.StatusConflict)
		case errors.Is(err, domain.ErrAlreadyFinalized):
			http.Error(w, "subscription already finalized", http.StatusConflict)
		default:
			s.log.Error().Err(err).Str("entry_id", entryID).Msg("reject failed")
			http.Error(w, "Failed to reject", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// handleSweep triggers one reconciliation sweep cycle on demand.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.sweeper.RunOnce(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("manual sweep failed")
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": n})
}

// handleFailures lists background jobs that exhausted their retries.
func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	failures, err := s.adminUC.RecentFailures(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list failures", http.StatusInternalServerError)
		return
	}
	if failures == nil {
		failures = []*model.JobFailure{}
	}
	writeJSON(w, http.StatusOK, struct {
		Data []*model.JobFailure `json:"data"`
	}{Data: failures})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "activated"
}
