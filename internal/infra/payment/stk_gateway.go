package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"retail-pos-billing/internal/config"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/adapter"
)

// Ensure STKGateway implements adapter.PaymentGateway
var _ adapter.PaymentGateway = (*STKGateway)(nil)

// Result codes the gateway is known to emit. 0 is the only success code;
// everything else non-nil is a definitive failure.
const (
	ResultCodeSuccess       = 0
	ResultCodeUserCancelled = 1032
	ResultCodeTimeout       = 1037
	ResultCodeInsufficient  = 1
)

// STKGateway talks to the mobile-money provider's push-payment API.
// Charges are asynchronous: InitiateCharge only triggers the prompt on the
// payer's phone; the outcome arrives later via webhook or QueryStatus.
type STKGateway struct {
	baseURL     string
	shortCode   string
	passkey     string
	callbackURL string
	client      *retryablehttp.Client
}

func NewSTKGateway(cfg *config.GatewayConfig) *STKGateway {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	return &STKGateway{
		baseURL:     cfg.BaseURL,
		shortCode:   cfg.ShortCode,
		passkey:     cfg.Passkey,
		callbackURL: cfg.CallbackURL,
		client:      client,
	}
}

func (g *STKGateway) Name() string { return "mobile-money-stk" }

type pushRequest struct {
	ShortCode        string `json:"BusinessShortCode"`
	Password         string `json:"Password"`
	Timestamp        string `json:"Timestamp"`
	Amount           int64  `json:"Amount"`
	PhoneNumber      string `json:"PhoneNumber"`
	CallBackURL      string `json:"CallBackURL"`
	AccountReference string `json:"AccountReference"`
	TransactionDesc  string `json:"TransactionDesc"`
}

type pushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateCharge pushes a payment prompt to the payer's phone.
func (g *STKGateway) InitiateCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResponse, error) {
	ts := time.Now().Format("20060102150405")
	body := pushRequest{
		ShortCode:        g.shortCode,
		Password:         g.password(ts),
		Timestamp:        ts,
		Amount:           req.Amount,
		PhoneNumber:      req.Phone,
		CallBackURL:      g.callbackURL,
		AccountReference: req.Reference,
		TransactionDesc:  req.Description,
	}

	var resp pushResponse
	if err := g.post(ctx, "/stkpush/v1/processrequest", body, &resp); err != nil {
		return adapter.ChargeResponse{}, err
	}
	if resp.ResponseCode != "0" {
		desc := resp.ResponseDescription
		if desc == "" {
			desc = resp.ErrorMessage
		}
		return adapter.ChargeResponse{}, fmt.Errorf("gateway rejected charge: code %s, %s", resp.ResponseCode, desc)
	}
	return adapter.ChargeResponse{
		CorrelationID: resp.CheckoutRequestID,
		ResponseDesc:  resp.ResponseDescription,
	}, nil
}

type queryRequest struct {
	ShortCode         string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type queryResponse struct {
	ResponseCode      string      `json:"ResponseCode"`
	ResultCode        json.Number `json:"ResultCode"` // arrives as string or number depending on API version
	ResultDesc        string      `json:"ResultDesc"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ReceiptNumber     *string     `json:"MpesaReceiptNumber,omitempty"`
	ErrorCode         string      `json:"errorCode"`
	ErrorMessage      string      `json:"errorMessage"`
}

// The gateway answers a query for a still-running prompt with this error
// code instead of a result.
const errCodeStillProcessing = "500.001.1001"

// QueryStatus asks the gateway for the outcome of an earlier charge.
// A still-pending charge yields a signal with a nil result code.
func (g *STKGateway) QueryStatus(ctx context.Context, correlationID string) (model.PaymentSignal, error) {
	ts := time.Now().Format("20060102150405")
	body := queryRequest{
		ShortCode:         g.shortCode,
		Password:          g.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: correlationID,
	}

	var resp queryResponse
	raw, err := g.postRaw(ctx, "/stkpushquery/v1/query", body, &resp)
	if err != nil {
		return model.PaymentSignal{}, err
	}

	sig := model.PaymentSignal{
		Source:        "poll",
		CorrelationID: correlationID,
		ResultDesc:    resp.ResultDesc,
		RawPayload:    raw,
	}
	if resp.ErrorCode == errCodeStillProcessing {
		return sig, nil
	}
	if resp.ErrorCode != "" {
		return model.PaymentSignal{}, fmt.Errorf("gateway query error: code %s, %s", resp.ErrorCode, resp.ErrorMessage)
	}
	if resp.ResultCode != "" {
		code, err := strconv.Atoi(resp.ResultCode.String())
		if err != nil {
			return model.PaymentSignal{}, fmt.Errorf("gateway result code %q: %w", resp.ResultCode, err)
		}
		sig.ResultCode = &code
	}
	if resp.ReceiptNumber != nil {
		sig.Receipt = *resp.ReceiptNumber
	}
	return sig, nil
}

func (g *STKGateway) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.shortCode + g.passkey + ts))
}

func (g *STKGateway) post(ctx context.Context, path string, body, out interface{}) error {
	_, err := g.postRaw(ctx, path, body, out)
	return err
}

func (g *STKGateway) postRaw(ctx context.Context, path string, body, out interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w, body: %s", err, string(raw))
	}
	return raw, nil
}
