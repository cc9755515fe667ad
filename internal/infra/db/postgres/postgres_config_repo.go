package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
)

var _ repository.ConfigRepository = (*configRepo)(nil)

type configRepo struct{ pool *pgxpool.Pool }

func NewConfigRepo(pool *pgxpool.Pool) *configRepo {
	return &configRepo{pool: pool}
}

const configCols = `key, category, value, version, updated_by, updated_at`

func scanConfig(row pgx.Row) (*model.PaymentConfig, error) {
	c := &model.PaymentConfig{}
	if err := row.Scan(&c.Key, &c.Category, &c.Value, &c.Version, &c.UpdatedBy, &c.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return c, nil
}

func (r *configRepo) Get(ctx context.Context, key string) (*model.PaymentConfig, error) {
	const q = `SELECT ` + configCols + ` FROM payment_config WHERE key=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, key)
	if err != nil {
		return nil, err
	}
	return scanConfig(row)
}

func (r *configRepo) ListByCategory(ctx context.Context, category model.ConfigCategory) ([]*model.PaymentConfig, error) {
	const q = `SELECT ` + configCols + ` FROM payment_config WHERE category=$1 ORDER BY key ASC;`
	rows, err := queryRows(ctx, r.pool, nil, q, category)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentConfig
	for rows.Next() {
		c, serr := scanConfig(rows)
		if serr != nil {
			return nil, serr
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *configRepo) Upsert(ctx context.Context, cfg *model.PaymentConfig) error {
	const q = `
INSERT INTO payment_config (key, category, value, version, updated_by, updated_at)
VALUES ($1,$2,$3,1,$4,$5)
ON CONFLICT (key) DO UPDATE SET
  category=$2, value=$3, version=payment_config.version+1, updated_by=$4, updated_at=$5
RETURNING version;`
	row, err := pickRow(ctx, r.pool, nil, q, cfg.Key, cfg.Category, cfg.Value, cfg.UpdatedBy, cfg.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&cfg.Version); err != nil {
		return domain.ErrReadDatabaseRow
	}
	return nil
}
