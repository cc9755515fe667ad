package adapter

import "context"

// ChargeRequest asks the processor to pull funds from a payer.
// TransactionID is the engine's ledger id; adapters must be idempotent per
// TransactionID when retried.
type ChargeRequest struct {
	TransactionID string
	Amount        int64 // minor units
	Currency      string
	PayerRef      string
	PayeeRef      string
	Description   string
}

// RefundCall asks the processor to return funds for a prior charge.
type RefundCall struct {
	TransactionID string
	ProviderRef   string // processor id of the charge being reversed
	Amount        int64
	Reason        string
}

// Result is the provider's answer to any gateway call.
type Result struct {
	ProviderTxnID  string
	ProviderStatus string // provider vocabulary, e.g. "captured", "refunded"
	Raw            map[string]interface{}
}

// PaymentGateway is the hex port for the external payment processor.
// Implementations must bound every call with the context deadline and return
// domain.ErrGatewayTimeout (wrapped) on expiry; callers never infer success
// from a timeout.
type PaymentGateway interface {
	Name() string

	Charge(ctx context.Context, req ChargeRequest) (Result, error)
	Refund(ctx context.Context, req RefundCall) (Result, error)

	// Status polls the processor for the outcome of a previously submitted
	// charge, used by the reconciliation pass.
	Status(ctx context.Context, transactionID string) (Result, error)
}
