package repository

import (
	"context"

	"logistics-payment-engine/internal/domain/model"
)

// ConfigRepository stores hot-reloadable PaymentConfig entries. Readers call
// Get on every operation; implementations may cache with a short TTL.
type ConfigRepository interface {
	Get(ctx context.Context, key string) (*model.PaymentConfig, error)
	ListByCategory(ctx context.Context, category model.ConfigCategory) ([]*model.PaymentConfig, error)

	// Upsert writes the value and bumps the version.
	Upsert(ctx context.Context, cfg *model.PaymentConfig) error
}
