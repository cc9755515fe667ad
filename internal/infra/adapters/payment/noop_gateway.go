package payment

import (
	"context"
	"fmt"
	"sync"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for local runs and tests.
// FailNext makes the next call fail so error paths can be exercised.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	charges  map[string]adapter.Result // transaction id -> result
	failNext error
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		charges: make(map[string]adapter.Result),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

// FailNext forces the next Charge or Refund to return err.
func (g *NoopPaymentGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) Charge(ctx context.Context, req adapter.ChargeRequest) (adapter.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(); err != nil {
		return adapter.Result{}, err
	}
	// idempotent per transaction id
	if res, ok := g.charges[req.TransactionID]; ok {
		return res, nil
	}
	res := adapter.Result{
		ProviderTxnID:  g.next("noop"),
		ProviderStatus: "captured",
		Raw:            map[string]interface{}{"amount": req.Amount, "currency": req.Currency},
	}
	g.charges[req.TransactionID] = res
	return res, nil
}

func (g *NoopPaymentGateway) Refund(ctx context.Context, req adapter.RefundCall) (adapter.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(); err != nil {
		return adapter.Result{}, err
	}
	res := adapter.Result{
		ProviderTxnID:  g.next("noop-refund"),
		ProviderStatus: "refunded",
		Raw:            map[string]interface{}{"amount": req.Amount, "reason": req.Reason},
	}
	g.charges[req.TransactionID] = res
	return res, nil
}

func (g *NoopPaymentGateway) Status(ctx context.Context, transactionID string) (adapter.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.charges[transactionID]; ok {
		return res, nil
	}
	return adapter.Result{}, fmt.Errorf("noop: unknown transaction %s: %w", transactionID, domain.ErrNotFound)
}

func (g *NoopPaymentGateway) takeFailure() error {
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return err
	}
	return nil
}
