// File: internal/application/payment_facade.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
	"logistics-payment-engine/internal/usecase"
)

// PaymentFacade composes the payment use cases into the operations the outer
// surfaces (HTTP handlers, schedulers) call. It enforces the cross-module
// rules: suspended fleets cannot take new shipments, escrow releases require
// delivery confirmation and are blocked by open refund requests.
type PaymentFacade struct {
	Escrow     usecase.EscrowManager
	Subs       usecase.SubscriptionManager
	Refunds    usecase.RefundManager
	Deliveries repository.DeliveryRepository
	Configs    repository.ConfigRepository
	Audit      *usecase.AuditLogger
	log        *zerolog.Logger
}

func NewPaymentFacade(
	escrow usecase.EscrowManager,
	subs usecase.SubscriptionManager,
	refunds usecase.RefundManager,
	deliveries repository.DeliveryRepository,
	configs repository.ConfigRepository,
	audit *usecase.AuditLogger,
	logger *zerolog.Logger,
) *PaymentFacade {
	return &PaymentFacade{
		Escrow:     escrow,
		Subs:       subs,
		Refunds:    refunds,
		Deliveries: deliveries,
		Configs:    configs,
		Audit:      audit,
		log:        logger,
	}
}

// CreateShipmentEscrow charges the shipper and holds the net amount in escrow.
// Fleets with a suspended subscription cannot be paid for new shipments.
func (f *PaymentFacade) CreateShipmentEscrow(ctx context.Context, shipmentID, payerID, payeeID string, payeeKind model.WalletKind, grossAmount int64, payerTier model.SubscriptionTier) (*model.PaymentTransaction, error) {
	if payeeKind == model.WalletKindFleet {
		suspended, err := f.Subs.IsFleetSuspended(ctx, payeeID)
		if err != nil {
			return nil, err
		}
		if suspended {
			return nil, fmt.Errorf("fleet %s: %w", payeeID, domain.ErrSubscriptionSuspended)
		}
	}
	return f.Escrow.CreateShipmentEscrow(ctx, shipmentID, payerID, payeeID, payeeKind, grossAmount, payerTier)
}

// ConfirmDelivery records the delivery event and releases the escrow. The
// confirmation is durable even when the release is blocked, so a later retry
// of ReleaseEscrow succeeds without re-confirming.
func (f *PaymentFacade) ConfirmDelivery(ctx context.Context, shipmentID, confirmedBy, proofReference string, confirmedAt time.Time) (*model.PaymentTransaction, error) {
	if shipmentID == "" || confirmedBy == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := f.Deliveries.FindByShipment(ctx, nil, shipmentID); errors.Is(err, domain.ErrNotFound) {
		d := &model.DeliveryConfirmation{
			ShipmentID:     shipmentID,
			ConfirmedBy:    confirmedBy,
			ConfirmedAt:    confirmedAt,
			ProofReference: proofReference,
			RecordedAt:     time.Now(),
		}
		if serr := f.Deliveries.Save(ctx, nil, d); serr != nil {
			return nil, serr
		}
		f.Audit.Log(ctx, shipmentID, "delivery.confirmed", confirmedBy, model.ActorTypeDriver, nil, map[string]interface{}{
			"confirmed_at": confirmedAt,
			"proof":        proofReference,
		})
	} else if err != nil {
		return nil, err
	}
	return f.ReleaseEscrow(ctx, shipmentID, confirmedBy)
}

// ReleaseEscrow settles held funds to the payee. It requires a recorded
// delivery confirmation and no open refund request for the shipment.
func (f *PaymentFacade) ReleaseEscrow(ctx context.Context, shipmentID, actorID string) (*model.PaymentTransaction, error) {
	if _, err := f.Deliveries.FindByShipment(ctx, nil, shipmentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("shipment %s: %w", shipmentID, domain.ErrDeliveryNotConfirmed)
		}
		return nil, err
	}
	if open, err := f.Refunds.FindOpenByShipment(ctx, shipmentID); err == nil && open != nil {
		return nil, fmt.Errorf("open refund request %s blocks release: %w", open.ID, domain.ErrStateConflict)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return f.Escrow.ReleaseEscrow(ctx, shipmentID, actorID)
}

func (f *PaymentFacade) AvailableForRefund(ctx context.Context, shipmentID string) (int64, error) {
	return f.Escrow.AvailableForRefund(ctx, shipmentID)
}

func (f *PaymentFacade) CreateRefundRequest(ctx context.Context, shipmentID, requestedBy string, typ model.RefundType, amount int64, reason string, evidence map[string]interface{}) (*model.RefundRequest, error) {
	return f.Refunds.CreateRefundRequest(ctx, shipmentID, requestedBy, typ, amount, reason, evidence)
}

func (f *PaymentFacade) ApproveRefundRequest(ctx context.Context, requestID, approvedBy string, amount *int64) (*model.RefundRequest, error) {
	return f.Refunds.ApproveRefundRequest(ctx, requestID, approvedBy, amount)
}

func (f *PaymentFacade) RejectRefundRequest(ctx context.Context, requestID, rejectedBy, reason string) (*model.RefundRequest, error) {
	return f.Refunds.RejectRefundRequest(ctx, requestID, rejectedBy, reason)
}

func (f *PaymentFacade) ListRefundsByShipment(ctx context.Context, shipmentID string) ([]*model.RefundRequest, error) {
	return f.Refunds.ListByShipment(ctx, shipmentID)
}

func (f *PaymentFacade) CreateFleetSubscription(ctx context.Context, fleetID string, tier model.SubscriptionTier, cycle model.BillingCycle, feeAmount int64, basis model.FeeBasis, vehicleCount int, autoRenew bool) (*model.FleetSubscription, error) {
	return f.Subs.CreateFleetSubscription(ctx, fleetID, tier, cycle, feeAmount, basis, vehicleCount, autoRenew)
}

func (f *PaymentFacade) CancelSubscription(ctx context.Context, subscriptionID, actorID string) error {
	return f.Subs.CancelSubscription(ctx, subscriptionID, actorID)
}

// UpdatePaymentConfig writes a hot-reloadable config value and audits the
// change with the previous value.
func (f *PaymentFacade) UpdatePaymentConfig(ctx context.Context, key, value string, category model.ConfigCategory, updatedBy string) (*model.PaymentConfig, error) {
	if key == "" || value == "" || updatedBy == "" {
		return nil, domain.ErrInvalidArgument
	}
	var old map[string]interface{}
	if prev, err := f.Configs.Get(ctx, key); err == nil {
		old = map[string]interface{}{"value": prev.Value, "version": prev.Version}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	cfg := &model.PaymentConfig{
		Key:       key,
		Category:  category,
		Value:     value,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now(),
	}
	if err := f.Configs.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	f.Audit.Log(ctx, key, "config.updated", updatedBy, model.ActorTypeAdmin, old, map[string]interface{}{
		"value":   cfg.Value,
		"version": cfg.Version,
	})
	return cfg, nil
}

// ErrorCode maps a domain error chain to a stable machine-readable code for
// API responses.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, domain.ErrGatewayTimeout):
		return "GATEWAY_TIMEOUT"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "GATEWAY_UNAVAILABLE"
	case errors.Is(err, domain.ErrWalletNotFound):
		return "WALLET_NOT_FOUND"
	case errors.Is(err, domain.ErrConfigMissing):
		return "CONFIG_MISSING"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return "DUPLICATE_REQUEST"
	case errors.Is(err, domain.ErrAmountExceedsAvailable):
		return "AMOUNT_EXCEEDS_AVAILABLE"
	case errors.Is(err, domain.ErrSubscriptionSuspended):
		return "SUBSCRIPTION_SUSPENDED"
	case errors.Is(err, domain.ErrDeliveryNotConfirmed):
		return "DELIVERY_NOT_CONFIRMED"
	case errors.Is(err, domain.ErrLockNotAcquired), errors.Is(err, domain.ErrStateConflict):
		return "STATE_CONFLICT"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	default:
		return "INTERNAL"
	}
}
