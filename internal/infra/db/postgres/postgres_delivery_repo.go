package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
)

var _ repository.DeliveryRepository = (*deliveryRepo)(nil)

type deliveryRepo struct{ pool *pgxpool.Pool }

func NewDeliveryRepo(pool *pgxpool.Pool) *deliveryRepo {
	return &deliveryRepo{pool: pool}
}

func (r *deliveryRepo) Save(ctx context.Context, tx repository.Tx, d *model.DeliveryConfirmation) error {
	// First confirmation wins; duplicates are silently absorbed.
	const q = `
INSERT INTO delivery_confirmations (shipment_id, confirmed_by, confirmed_at, proof_reference, recorded_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (shipment_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, d.ShipmentID, d.ConfirmedBy, d.ConfirmedAt, d.ProofReference, d.RecordedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *deliveryRepo) FindByShipment(ctx context.Context, tx repository.Tx, shipmentID string) (*model.DeliveryConfirmation, error) {
	const q = `SELECT shipment_id, confirmed_by, confirmed_at, proof_reference, recorded_at FROM delivery_confirmations WHERE shipment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, shipmentID)
	if err != nil {
		return nil, err
	}
	d := &model.DeliveryConfirmation{}
	if err := row.Scan(&d.ShipmentID, &d.ConfirmedBy, &d.ConfirmedAt, &d.ProofReference, &d.RecordedAt); err != nil {
		return nil, scanErr(err)
	}
	return d, nil
}
