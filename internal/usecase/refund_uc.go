// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
	"logistics-payment-engine/internal/infra/metrics"
)

// Compile-time check
var _ RefundManager = (*refundUC)(nil)

// RefundManager runs the request/review workflow in front of escrow refunds.
// Money only moves on approval; the request itself is bookkeeping.
type RefundManager interface {
	// CreateRefundRequest opens a pending request against a shipment's escrow.
	// At most one non-terminal request may exist per shipment. A dispute-typed
	// request additionally freezes the escrow.
	CreateRefundRequest(ctx context.Context, shipmentID, requestedBy string, typ model.RefundType, amount int64, reason string, evidence map[string]interface{}) (*model.RefundRequest, error)

	// ApproveRefundRequest executes the refund. A nil amount approves the
	// requested amount in full.
	ApproveRefundRequest(ctx context.Context, requestID, approvedBy string, amount *int64) (*model.RefundRequest, error)

	RejectRefundRequest(ctx context.Context, requestID, rejectedBy, reason string) (*model.RefundRequest, error)

	FindOpenByShipment(ctx context.Context, shipmentID string) (*model.RefundRequest, error)
	ListByShipment(ctx context.Context, shipmentID string) ([]*model.RefundRequest, error)
}

type refundUC struct {
	refunds repository.RefundRepository
	escrow  EscrowManager
	audit   *AuditLogger
	log     *zerolog.Logger
}

func NewRefundUseCase(refunds repository.RefundRepository, escrow EscrowManager, audit *AuditLogger, logger *zerolog.Logger) *refundUC {
	return &refundUC{refunds: refunds, escrow: escrow, audit: audit, log: logger}
}

func (u *refundUC) CreateRefundRequest(ctx context.Context, shipmentID, requestedBy string, typ model.RefundType, amount int64, reason string, evidence map[string]interface{}) (*model.RefundRequest, error) {
	if open, err := u.refunds.FindOpenByShipment(ctx, nil, shipmentID); err == nil && open != nil {
		return nil, fmt.Errorf("open refund request %s for shipment %s: %w", open.ID, shipmentID, domain.ErrDuplicateRequest)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	available, err := u.escrow.AvailableForRefund(ctx, shipmentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no refundable escrow for shipment %s: %w", shipmentID, domain.ErrStateConflict)
	}
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, fmt.Errorf("nothing refundable for shipment %s: %w", shipmentID, domain.ErrStateConflict)
	}
	if amount > available {
		return nil, domain.ErrAmountExceedsAvailable
	}

	req, err := model.NewRefundRequest(uuid.NewString(), shipmentID, requestedBy, typ, amount, reason, evidence)
	if err != nil {
		return nil, err
	}
	if err := u.refunds.Save(ctx, nil, req); err != nil {
		return nil, err
	}

	if typ == model.RefundTypeDispute {
		if derr := u.escrow.MarkDisputed(ctx, shipmentID, req.ID); derr != nil && !errors.Is(derr, domain.ErrStateConflict) {
			// settled escrow cannot be frozen; the chargeback path still applies
			u.log.Warn().Err(derr).Str("shipment_id", shipmentID).Msg("could not freeze escrow for dispute")
		}
	}

	metrics.IncRefund("requested")
	u.audit.Log(ctx, req.ID, "refund.requested", requestedBy, model.ActorTypeShipper, nil, refundSnapshot(req))
	return req, nil
}

func (u *refundUC) ApproveRefundRequest(ctx context.Context, requestID, approvedBy string, amount *int64) (*model.RefundRequest, error) {
	req, err := u.refunds.FindByID(ctx, nil, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RefundStatusPending {
		return nil, fmt.Errorf("refund request is %s: %w", req.Status, domain.ErrStateConflict)
	}
	approve := req.AmountRequested
	if amount != nil {
		approve = *amount
	}
	if approve <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	available, err := u.escrow.AvailableForRefund(ctx, req.ShipmentID)
	if err != nil {
		return nil, err
	}
	if approve > available {
		return nil, domain.ErrAmountExceedsAvailable
	}

	old := refundSnapshot(req)
	now := time.Now()
	req.Status = model.RefundStatusApproved
	req.AmountApproved = &approve
	req.ApprovedBy = &approvedBy
	req.ApprovedAt = &now
	req.UpdatedAt = now
	if err := u.refunds.Save(ctx, nil, req); err != nil {
		return nil, err
	}

	req.Status = model.RefundStatusProcessing
	req.UpdatedAt = time.Now()
	if err := u.refunds.Save(ctx, nil, req); err != nil {
		return nil, err
	}

	txn, err := u.escrow.RefundEscrow(ctx, req.ShipmentID, approve, req.Reason, approvedBy)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) && txn != nil {
			// money may still move; stays processing for the reconciler
			tid := txn.ID
			req.TransactionID = &tid
			_ = u.refunds.Save(ctx, nil, req)
			return req, err
		}
		// execution failed cleanly; return to pending for another attempt
		req.Status = model.RefundStatusPending
		req.UpdatedAt = time.Now()
		if serr := u.refunds.Save(ctx, nil, req); serr != nil {
			u.log.Error().Err(serr).Str("request_id", req.ID).Msg("failed to restore refund request after execution failure")
		}
		return nil, err
	}

	done := time.Now()
	tid := txn.ID
	req.Status = model.RefundStatusCompleted
	req.TransactionID = &tid
	req.ProcessedAt = &done
	req.UpdatedAt = done
	if err := u.refunds.Save(ctx, nil, req); err != nil {
		return nil, err
	}

	metrics.IncRefund("approved")
	u.audit.Log(ctx, req.ID, "refund.approved", approvedBy, model.ActorTypeAdmin, old, refundSnapshot(req))
	return req, nil
}

func (u *refundUC) RejectRefundRequest(ctx context.Context, requestID, rejectedBy, reason string) (*model.RefundRequest, error) {
	req, err := u.refunds.FindByID(ctx, nil, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RefundStatusPending {
		return nil, fmt.Errorf("refund request is %s: %w", req.Status, domain.ErrStateConflict)
	}
	old := refundSnapshot(req)
	req.Status = model.RefundStatusRejected
	if reason != "" {
		req.Reason = reason
	}
	req.UpdatedAt = time.Now()
	if err := u.refunds.Save(ctx, nil, req); err != nil {
		return nil, err
	}
	metrics.IncRefund("rejected")
	u.audit.Log(ctx, req.ID, "refund.rejected", rejectedBy, model.ActorTypeAdmin, old, refundSnapshot(req))
	return req, nil
}

func (u *refundUC) FindOpenByShipment(ctx context.Context, shipmentID string) (*model.RefundRequest, error) {
	return u.refunds.FindOpenByShipment(ctx, nil, shipmentID)
}

func (u *refundUC) ListByShipment(ctx context.Context, shipmentID string) ([]*model.RefundRequest, error) {
	return u.refunds.ListByShipment(ctx, nil, shipmentID)
}
