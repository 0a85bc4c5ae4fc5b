package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/infra/metrics"
	"retail-pos-billing/internal/usecase"
)

// stkCallback mirrors the gateway's asynchronous completion payload.
type stkCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        *int   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// handleWebhook ingests the gateway's completion callback. The handler is a
// thin adapter: verify the signature, translate the payload to a signal, call
// Finalize. Every failure past signature verification still answers 200 so
// the gateway stops redelivering; the transaction is on the ledger and the
// sweep picks up whatever could not be resolved now.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if !s.verifySignature(r, body) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature mismatch")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var cb stkCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		s.log.Warn().Err(err).Msg("malformed webhook payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	payload := cb.Body.StkCallback
	if payload.CheckoutRequestID == "" {
		http.Error(w, "missing CheckoutRequestID", http.StatusBadRequest)
		return
	}

	signal := model.PaymentSignal{
		Source:        "webhook",
		CorrelationID: payload.CheckoutRequestID,
		ResultCode:    payload.ResultCode,
		ResultDesc:    payload.ResultDesc,
		Metadata:      map[string]interface{}{},
		RawPayload:    body,
	}
	for _, item := range payload.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				signal.Receipt = v
			}
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				signal.Amount = int64(v)
			}
		case "PhoneNumber":
			switch v := item.Value.(type) {
			case string:
				signal.Phone = v
			case float64:
				signal.Phone = strconv.FormatFloat(v, 'f', 0, 64)
			}
		default:
			signal.Metadata[item.Name] = item.Value
		}
	}

	started := time.Now()
	outcome, err := s.reconcileUC.Finalize(r.Context(), signal)
	latency := int(time.Since(started).Milliseconds())
	if err != nil {
		s.log.Error().Err(err).Str("correlation_id", signal.CorrelationID).Msg("webhook finalize failed")
		metrics.ObserveReconcile("webhook", "error", latency)
		// 200 regardless; the ledger row survives and the sweep retries.
	} else {
		metrics.ObserveReconcile("webhook", string(outcome), latency)
		metrics.IncPayment(string(model.ResolveStatus(signal.ResultCode)))
		if outcome == usecase.OutcomeActivated {
			metrics.IncActivation("webhook")
		}
		if signal.Succeeded() && signal.Amount > 0 {
			metrics.AddPaymentRevenue(s.currency, signal.Amount)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// verifySignature checks the gateway's HMAC-SHA256 over the raw body.
// An unset secret disables verification (dev only).
func (s *Server) verifySignature(r *http.Request, body []byte) bool {
	if s.webhookSecret == "" {
		return true
	}
	sig := r.Header.Get("X-Signature")
	if sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}
