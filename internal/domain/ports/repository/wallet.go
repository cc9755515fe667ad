package repository

import (
	"context"

	"logistics-payment-engine/internal/domain/model"
)

// WalletRepository persists wallets. Balances are adjusted only through
// AdjustBalance so every mutation is an atomic increment guarded by the
// non-negative invariant.
type WalletRepository interface {
	Save(ctx context.Context, tx Tx, w *model.Wallet) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Wallet, error)
	FindByOwnerAndKind(ctx context.Context, tx Tx, ownerID *string, kind model.WalletKind) (*model.Wallet, error)
	FindActiveByOwner(ctx context.Context, tx Tx, ownerID string) (*model.Wallet, error)

	// GetOrCreate resolves the wallet for owner+kind, creating it idempotently
	// on first use.
	GetOrCreate(ctx context.Context, tx Tx, ownerID *string, kind model.WalletKind, currency string) (*model.Wallet, error)

	// AdjustBalance applies delta atomically. It fails with
	// domain.ErrInvalidAmount when the result would go negative and
	// domain.ErrWalletNotFound when the wallet does not exist or is inactive.
	AdjustBalance(ctx context.Context, tx Tx, walletID string, delta int64) error

	Deactivate(ctx context.Context, tx Tx, id string) error
}
