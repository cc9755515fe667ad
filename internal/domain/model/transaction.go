package model

import "time"

type TransactionKind string

const (
	TransactionKindEscrowIn     TransactionKind = "escrow_in"
	TransactionKindEscrowOut    TransactionKind = "escrow_out"
	TransactionKindCommission   TransactionKind = "commission"
	TransactionKindSubscription TransactionKind = "subscription"
	TransactionKindSettlement   TransactionKind = "settlement"
	TransactionKindRefund       TransactionKind = "refund"
	TransactionKindChargeback   TransactionKind = "chargeback"
	TransactionKindDisputeHold  TransactionKind = "dispute_hold"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"    // created, not yet submitted
	TransactionStatusProcessing TransactionStatus = "processing" // submitted to gateway, awaiting outcome
	TransactionStatusHeld       TransactionStatus = "held"       // funds held in escrow
	TransactionStatusComplete   TransactionStatus = "complete"   // money moved, no hold
	TransactionStatusSettled    TransactionStatus = "settled"    // escrow released to payee
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusRefunded   TransactionStatus = "refunded"
	TransactionStatusDisputed   TransactionStatus = "disputed"
)

// transitions encodes the monotonic status machine. Terminal states map to nil.
var transitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:    {TransactionStatusProcessing, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusProcessing: {TransactionStatusHeld, TransactionStatusComplete, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusHeld:       {TransactionStatusSettled, TransactionStatusRefunded, TransactionStatusDisputed, TransactionStatusFailed},
	TransactionStatusDisputed:   {TransactionStatusSettled, TransactionStatusRefunded},
	TransactionStatusComplete:   {TransactionStatusRefunded},
	TransactionStatusSettled:    {TransactionStatusRefunded},
}

// CanTransition reports whether s -> to is a legal move.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	for _, n := range transitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further money movement can originate from s.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

// PaymentTransaction is a single money movement in the ledger.
// Amount is immutable once status leaves pending.
type PaymentTransaction struct {
	ID               string  // UUID
	ShipmentID       *string // nil for subscription and other non-shipment movements
	PayerID          string
	PayeeID          string
	Amount           int64 // minor units
	Currency         string
	Kind             TransactionKind
	Status           TransactionStatus
	ProviderRef      *string                // processor transaction id after submission
	ProviderResponse map[string]interface{} // raw processor payload (JSONB)
	EscrowWalletID   *string                // set for escrow_in/settlement/refund legs
	CommissionBps    *int64                 // commission rate applied, basis points
	RefundReason     *string
	DisputeID        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProcessedAt      *time.Time // gateway outcome recorded
	SettledAt        *time.Time // escrow released
}
