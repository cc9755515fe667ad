package repository

import (
	"context"
	"time"

	"logistics-payment-engine/internal/domain/model"
)

// TransactionRepository persists payment transactions.
type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.PaymentTransaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentTransaction, error)

	// FindByShipmentAndKind returns the most recent transaction of the given
	// kind for a shipment, or domain.ErrNotFound.
	FindByShipmentAndKind(ctx context.Context, tx Tx, shipmentID string, kind model.TransactionKind) (*model.PaymentTransaction, error)
	ListByShipment(ctx context.Context, tx Tx, shipmentID string) ([]*model.PaymentTransaction, error)

	UpdateStatus(ctx context.Context, tx Tx, id string, status model.TransactionStatus, providerRef *string, processedAt *time.Time) error

	// UpdateStatusIf transitions id from one of the `from` statuses to `to`
	// and reports whether a row changed. It is the conditional-update
	// primitive behind release idempotence and pair rollback.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from []model.TransactionStatus, to model.TransactionStatus) (bool, error)

	// MarkSettled sets status=settled and settled_at in one statement, only
	// from the given statuses. Reports whether a row changed.
	MarkSettled(ctx context.Context, tx Tx, id string, from []model.TransactionStatus, settledAt time.Time) (bool, error)

	SetProviderResponse(ctx context.Context, tx Tx, id string, providerRef *string, response map[string]interface{}) error

	// ListStaleInFlight returns transactions stuck in pending or processing
	// since before the cutoff, for the reconciliation pass. Pending rows cover
	// crashes between the ledger write and the gateway submit.
	ListStaleInFlight(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error)
}
