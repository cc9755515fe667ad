package repository

import (
	"context"
	"time"

	"logistics-payment-engine/internal/domain/model"
)

// SubscriptionRepository persists fleet subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.FleetSubscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.FleetSubscription, error)

	// FindCurrentByFleet returns the fleet's non-cancelled, non-expired
	// subscription, or domain.ErrNotFound.
	FindCurrentByFleet(ctx context.Context, tx Tx, fleetID string) (*model.FleetSubscription, error)

	// ListDue returns active subscriptions with next_billing_date <= now,
	// oldest first.
	ListDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.FleetSubscription, error)
}
