package model

import (
	"time"

	"logistics-payment-engine/internal/domain"
)

type RefundType string

const (
	RefundTypeCancellation   RefundType = "cancellation"
	RefundTypeDispute        RefundType = "dispute"
	RefundTypeFailedDelivery RefundType = "failed_delivery"
	RefundTypeAdminOverride  RefundType = "admin_override"
)

func (t RefundType) Valid() bool {
	switch t {
	case RefundTypeCancellation, RefundTypeDispute, RefundTypeFailedDelivery, RefundTypeAdminOverride:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusApproved   RefundStatus = "approved"
	RefundStatusRejected   RefundStatus = "rejected"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
)

func (s RefundStatus) Terminal() bool {
	return s == RefundStatusRejected || s == RefundStatusCompleted
}

// RefundRequest is a claim against escrowed or settled funds for a shipment.
// At most one non-terminal request may exist per shipment.
type RefundRequest struct {
	ID              string // UUID
	ShipmentID      string
	RequestedBy     string
	Type            RefundType
	AmountRequested int64
	AmountApproved  *int64
	Reason          string
	Evidence        map[string]interface{} // JSONB
	Status          RefundStatus
	ApprovedBy      *string
	TransactionID   *string // refund PaymentTransaction created on approval
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ApprovedAt      *time.Time
	ProcessedAt     *time.Time
}

// NewRefundRequest creates a pending request.
func NewRefundRequest(id, shipmentID, requestedBy string, typ RefundType, amount int64, reason string, evidence map[string]interface{}) (*RefundRequest, error) {
	if id == "" || shipmentID == "" || requestedBy == "" || !typ.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	now := time.Now()
	return &RefundRequest{
		ID:              id,
		ShipmentID:      shipmentID,
		RequestedBy:     requestedBy,
		Type:            typ,
		AmountRequested: amount,
		Reason:          reason,
		Evidence:        evidence,
		Status:          RefundStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
