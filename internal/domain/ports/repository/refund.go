package repository

import (
	"context"

	"logistics-payment-engine/internal/domain/model"
)

// RefundRepository persists refund requests.
type RefundRepository interface {
	Save(ctx context.Context, tx Tx, r *model.RefundRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.RefundRequest, error)

	// FindOpenByShipment returns the shipment's non-terminal request, or
	// domain.ErrNotFound when none exists.
	FindOpenByShipment(ctx context.Context, tx Tx, shipmentID string) (*model.RefundRequest, error)

	// FindByTransaction returns the request whose approval created the given
	// refund transaction, or domain.ErrNotFound.
	FindByTransaction(ctx context.Context, tx Tx, transactionID string) (*model.RefundRequest, error)
	ListByShipment(ctx context.Context, tx Tx, shipmentID string) ([]*model.RefundRequest, error)
}
