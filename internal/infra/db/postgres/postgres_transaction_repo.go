package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const txnCols = `id, shipment_id, payer_id, payee_id, amount, currency, kind, status, provider_ref, provider_response, escrow_wallet_id, commission_bps, refund_reason, dispute_id, created_at, updated_at, processed_at, settled_at`

func scanTxn(row pgx.Row) (*model.PaymentTransaction, error) {
	t := &model.PaymentTransaction{}
	if err := row.Scan(&t.ID, &t.ShipmentID, &t.PayerID, &t.PayeeID, &t.Amount, &t.Currency, &t.Kind, &t.Status, &t.ProviderRef, &t.ProviderResponse, &t.EscrowWalletID, &t.CommissionBps, &t.RefundReason, &t.DisputeID, &t.CreatedAt, &t.UpdatedAt, &t.ProcessedAt, &t.SettledAt); err != nil {
		return nil, scanErr(err)
	}
	return t, nil
}

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	const q = `
INSERT INTO payment_transactions (
  id, shipment_id, payer_id, payee_id, amount, currency, kind, status, provider_ref, provider_response, escrow_wallet_id, commission_bps, refund_reason, dispute_id, created_at, updated_at, processed_at, settled_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  status=$8, provider_ref=$9, provider_response=$10, refund_reason=$13, dispute_id=$14, updated_at=$16, processed_at=$17, settled_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.ShipmentID, t.PayerID, t.PayeeID, t.Amount, t.Currency, t.Kind, t.Status, t.ProviderRef, t.ProviderResponse, t.EscrowWalletID, t.CommissionBps, t.RefundReason, t.DisputeID, t.CreatedAt, t.UpdatedAt, t.ProcessedAt, t.SettledAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + txnCols + ` FROM payment_transactions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTxn(row)
}

func (r *transactionRepo) FindByShipmentAndKind(ctx context.Context, tx repository.Tx, shipmentID string, kind model.TransactionKind) (*model.PaymentTransaction, error) {
	q := `SELECT ` + txnCols + ` FROM payment_transactions WHERE shipment_id=$1 AND kind=$2 ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, shipmentID, kind)
	if err != nil {
		return nil, err
	}
	return scanTxn(row)
}

func (r *transactionRepo) ListByShipment(ctx context.Context, tx repository.Tx, shipmentID string) ([]*model.PaymentTransaction, error) {
	const q = `SELECT ` + txnCols + ` FROM payment_transactions WHERE shipment_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, shipmentID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		t, serr := scanTxn(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus, providerRef *string, processedAt *time.Time) error {
	const q = `UPDATE payment_transactions SET status=$2, provider_ref=COALESCE($3, provider_ref), processed_at=COALESCE($4, processed_at), updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, providerRef, processedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *transactionRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from []model.TransactionStatus, to model.TransactionStatus) (bool, error) {
	const q = `
UPDATE payment_transactions
   SET status = $3, updated_at = NOW()
 WHERE id = $1
   AND status = ANY($2);`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, statusStrings(from), to)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *transactionRepo) MarkSettled(ctx context.Context, tx repository.Tx, id string, from []model.TransactionStatus, settledAt time.Time) (bool, error) {
	const q = `
UPDATE payment_transactions
   SET status = 'settled', settled_at = $3, updated_at = NOW()
 WHERE id = $1
   AND status = ANY($2);`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, statusStrings(from), settledAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *transactionRepo) SetProviderResponse(ctx context.Context, tx repository.Tx, id string, providerRef *string, response map[string]interface{}) error {
	const q = `UPDATE payment_transactions SET provider_ref=COALESCE($2, provider_ref), provider_response=$3, processed_at=NOW(), updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, providerRef, response)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *transactionRepo) ListStaleInFlight(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + txnCols + ` FROM payment_transactions WHERE status IN ('pending','processing') AND updated_at < $1 ORDER BY updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		t, serr := scanTxn(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, t)
	}
	return out, nil
}

func statusStrings(in []model.TransactionStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
