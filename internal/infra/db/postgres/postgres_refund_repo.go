package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
)

var _ repository.RefundRepository = (*refundRepo)(nil)

type refundRepo struct{ pool *pgxpool.Pool }

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundCols = `id, shipment_id, requested_by, type, amount_requested, amount_approved, reason, evidence, status, approved_by, transaction_id, created_at, updated_at, approved_at, processed_at`

func scanRefund(row pgx.Row) (*model.RefundRequest, error) {
	rr := &model.RefundRequest{}
	if err := row.Scan(&rr.ID, &rr.ShipmentID, &rr.RequestedBy, &rr.Type, &rr.AmountRequested, &rr.AmountApproved, &rr.Reason, &rr.Evidence, &rr.Status, &rr.ApprovedBy, &rr.TransactionID, &rr.CreatedAt, &rr.UpdatedAt, &rr.ApprovedAt, &rr.ProcessedAt); err != nil {
		return nil, scanErr(err)
	}
	return rr, nil
}

func (r *refundRepo) Save(ctx context.Context, tx repository.Tx, rr *model.RefundRequest) error {
	const q = `
INSERT INTO refund_requests (
  id, shipment_id, requested_by, type, amount_requested, amount_approved, reason, evidence, status, approved_by, transaction_id, created_at, updated_at, approved_at, processed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  amount_approved=$6, reason=$7, evidence=$8, status=$9, approved_by=$10, transaction_id=$11, updated_at=$13, approved_at=$14, processed_at=$15;`

	_, err := execSQL(ctx, r.pool, tx, q, rr.ID, rr.ShipmentID, rr.RequestedBy, rr.Type, rr.AmountRequested, rr.AmountApproved, rr.Reason, rr.Evidence, rr.Status, rr.ApprovedBy, rr.TransactionID, rr.CreatedAt, rr.UpdatedAt, rr.ApprovedAt, rr.ProcessedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *refundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	q := `SELECT ` + refundCols + ` FROM refund_requests WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) FindOpenByShipment(ctx context.Context, tx repository.Tx, shipmentID string) (*model.RefundRequest, error) {
	q := `SELECT ` + refundCols + ` FROM refund_requests WHERE shipment_id=$1 AND status NOT IN ('rejected','completed') ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, shipmentID)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) FindByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (*model.RefundRequest, error) {
	q := `SELECT ` + refundCols + ` FROM refund_requests WHERE transaction_id=$1 ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, transactionID)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) ListByShipment(ctx context.Context, tx repository.Tx, shipmentID string) ([]*model.RefundRequest, error) {
	const q = `SELECT ` + refundCols + ` FROM refund_requests WHERE shipment_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, shipmentID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.RefundRequest
	for rows.Next() {
		rr, serr := scanRefund(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, rr)
	}
	return out, nil
}
