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

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subCols = `id, fleet_id, tier, cycle, fee_amount, fee_basis, vehicle_count, status, current_period_start, current_period_end, next_billing_date, grace_period_end, auto_renew, created_at, updated_at`

func scanSub(row pgx.Row) (*model.FleetSubscription, error) {
	s := &model.FleetSubscription{}
	if err := row.Scan(&s.ID, &s.FleetID, &s.Tier, &s.Cycle, &s.FeeAmount, &s.FeeBasis, &s.VehicleCount, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.NextBillingDate, &s.GracePeriodEnd, &s.AutoRenew, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return s, nil
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.FleetSubscription) error {
	const q = `
INSERT INTO fleet_subscriptions (
  id, fleet_id, tier, cycle, fee_amount, fee_basis, vehicle_count, status, current_period_start, current_period_end, next_billing_date, grace_period_end, auto_renew, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  tier=$3, cycle=$4, fee_amount=$5, fee_basis=$6, vehicle_count=$7, status=$8, current_period_start=$9, current_period_end=$10, next_billing_date=$11, grace_period_end=$12, auto_renew=$13, updated_at=$15;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.FleetID, s.Tier, s.Cycle, s.FeeAmount, s.FeeBasis, s.VehicleCount, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.NextBillingDate, s.GracePeriodEnd, s.AutoRenew, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.FleetSubscription, error) {
	q := `SELECT ` + subCols + ` FROM fleet_subscriptions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) FindCurrentByFleet(ctx context.Context, tx repository.Tx, fleetID string) (*model.FleetSubscription, error) {
	q := `SELECT ` + subCols + ` FROM fleet_subscriptions WHERE fleet_id=$1 AND status NOT IN ('cancelled','expired') ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, fleetID)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.FleetSubscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + subCols + ` FROM fleet_subscriptions WHERE status='active' AND auto_renew AND next_billing_date <= $1 ORDER BY next_billing_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.FleetSubscription
	for rows.Next() {
		s, serr := scanSub(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, s)
	}
	return out, nil
}
