// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/ports/adapter"
	"logistics-payment-engine/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway against a Razorpay-style
// REST API. Every mutating call carries the ledger transaction id as the
// idempotency key, so retries after timeouts never double-charge.
type RazorpayGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewRazorpayGateway(baseURL, keyID, keySecret string, timeout time.Duration) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("gateway credentials empty")
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayGateway{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) Charge(ctx context.Context, req adapter.ChargeRequest) (adapter.Result, error) {
	payload := map[string]interface{}{
		"amount":      req.Amount,
		"currency":    req.Currency,
		"description": req.Description,
		"notes": map[string]string{
			"transaction_id": req.TransactionID,
			"payer_ref":      req.PayerRef,
			"payee_ref":      req.PayeeRef,
		},
	}
	return g.post(ctx, "/v1/payments", req.TransactionID, payload, "charge")
}

func (g *RazorpayGateway) Refund(ctx context.Context, req adapter.RefundCall) (adapter.Result, error) {
	payload := map[string]interface{}{
		"amount": req.Amount,
		"notes": map[string]string{
			"transaction_id": req.TransactionID,
			"reason":         req.Reason,
		},
	}
	path := fmt.Sprintf("/v1/payments/%s/refund", url.PathEscape(req.ProviderRef))
	return g.post(ctx, path, req.TransactionID, payload, "refund")
}

func (g *RazorpayGateway) Status(ctx context.Context, transactionID string) (adapter.Result, error) {
	start := time.Now()
	path := fmt.Sprintf("/v1/payments?transaction_id=%s", url.QueryEscape(transactionID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return adapter.Result{}, err
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		metrics.ObserveGatewayCall("status", int(time.Since(start).Milliseconds()), false)
		return adapter.Result{}, g.transportErr(err)
	}
	defer resp.Body.Close()
	res, err := decodeResult(resp)
	metrics.ObserveGatewayCall("status", int(time.Since(start).Milliseconds()), err == nil)
	return res, err
}

func (g *RazorpayGateway) post(ctx context.Context, path, idempotencyKey string, payload map[string]interface{}, op string) (adapter.Result, error) {
	start := time.Now()
	b, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return adapter.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)
	httpReq.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		metrics.ObserveGatewayCall(op, int(time.Since(start).Milliseconds()), false)
		return adapter.Result{}, g.transportErr(err)
	}
	defer resp.Body.Close()
	res, err := decodeResult(resp)
	metrics.ObserveGatewayCall(op, int(time.Since(start).Milliseconds()), err == nil)
	return res, err
}

// transportErr surfaces deadline expiry as the domain timeout so callers know
// the outcome is unknown rather than failed.
func (g *RazorpayGateway) transportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gateway call timed out: %w", domain.ErrGatewayTimeout)
	}
	return fmt.Errorf("gateway call failed: %w", domain.ErrGatewayUnavailable)
}

func decodeResult(resp *http.Response) (adapter.Result, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return adapter.Result{}, fmt.Errorf("gateway http %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}
	var out struct {
		ID     string                 `json:"id"`
		Status string                 `json:"status"`
		Raw    map[string]interface{} `json:"-"`
	}
	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return adapter.Result{}, fmt.Errorf("decode gateway response: %w", domain.ErrGatewayUnavailable)
	}
	if v, ok := raw["id"].(string); ok {
		out.ID = v
	}
	if v, ok := raw["status"].(string); ok {
		out.Status = v
	}
	if out.ID == "" {
		return adapter.Result{}, fmt.Errorf("gateway response missing id: %w", domain.ErrGatewayUnavailable)
	}
	return adapter.Result{
		ProviderTxnID:  out.ID,
		ProviderStatus: out.Status,
		Raw:            raw,
	}, nil
}
