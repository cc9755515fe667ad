package repository

import (
	"context"

	"logistics-payment-engine/internal/domain/model"
)

// DeliveryRepository records delivery-confirmed events consumed by the
// orchestration facade.
type DeliveryRepository interface {
	Save(ctx context.Context, tx Tx, d *model.DeliveryConfirmation) error
	FindByShipment(ctx context.Context, tx Tx, shipmentID string) (*model.DeliveryConfirmation, error)
}
