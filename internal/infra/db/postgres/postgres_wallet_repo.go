package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
)

var _ repository.WalletRepository = (*walletRepo)(nil)

type walletRepo struct{ pool *pgxpool.Pool }

func NewWalletRepo(pool *pgxpool.Pool) *walletRepo {
	return &walletRepo{pool: pool}
}

const walletCols = `id, kind, owner_id, balance, currency, provider_account_ref, active, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	w := &model.Wallet{}
	if err := row.Scan(&w.ID, &w.Kind, &w.OwnerID, &w.Balance, &w.Currency, &w.ProviderAccountRef, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return w, nil
}

func (r *walletRepo) Save(ctx context.Context, tx repository.Tx, w *model.Wallet) error {
	const q = `
INSERT INTO wallets (id, kind, owner_id, balance, currency, provider_account_ref, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  provider_account_ref=$6, active=$7, updated_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q, w.ID, w.Kind, w.OwnerID, w.Balance, w.Currency, w.ProviderAccountRef, w.Active, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *walletRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Wallet, error) {
	q := `SELECT ` + walletCols + ` FROM wallets WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanWallet(row)
}

func (r *walletRepo) FindByOwnerAndKind(ctx context.Context, tx repository.Tx, ownerID *string, kind model.WalletKind) (*model.Wallet, error) {
	q := `SELECT ` + walletCols + ` FROM wallets WHERE owner_id IS NOT DISTINCT FROM $1 AND kind=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, ownerID, kind)
	if err != nil {
		return nil, err
	}
	return scanWallet(row)
}

func (r *walletRepo) FindActiveByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Wallet, error) {
	q := `SELECT ` + walletCols + ` FROM wallets WHERE owner_id=$1 AND active LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	return scanWallet(row)
}

func (r *walletRepo) GetOrCreate(ctx context.Context, tx repository.Tx, ownerID *string, kind model.WalletKind, currency string) (*model.Wallet, error) {
	if w, err := r.FindByOwnerAndKind(ctx, tx, ownerID, kind); err == nil {
		return w, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	w, err := model.NewWallet(uuid.NewString(), kind, ownerID, currency)
	if err != nil {
		return nil, err
	}
	// The partial unique index on (kind, owner) makes concurrent creation
	// race-safe: losers fall through to the existing row.
	const q = `
INSERT INTO wallets (id, kind, owner_id, balance, currency, provider_account_ref, active, created_at, updated_at)
VALUES ($1,$2,$3,0,$4,'',TRUE,$5,$5)
ON CONFLICT (kind, COALESCE(owner_id, '')) DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, tx, q, w.ID, w.Kind, w.OwnerID, w.Currency, w.CreatedAt); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	return r.FindByOwnerAndKind(ctx, tx, ownerID, kind)
}

func (r *walletRepo) AdjustBalance(ctx context.Context, tx repository.Tx, walletID string, delta int64) error {
	// Single statement keeps the non-negative invariant under concurrency.
	const q = `
UPDATE wallets
   SET balance = balance + $2, updated_at = NOW()
 WHERE id = $1 AND active AND balance + $2 >= 0;`
	cmd, err := execSQL(ctx, r.pool, tx, q, walletID, delta)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		// Distinguish missing wallet from an overdraw attempt.
		if _, ferr := r.FindByID(ctx, tx, walletID); errors.Is(ferr, domain.ErrNotFound) {
			return domain.ErrWalletNotFound
		}
		return domain.ErrInvalidAmount
	}
	return nil
}

func (r *walletRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE wallets SET active=FALSE, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}
