package model

import (
	"time"

	"logistics-payment-engine/internal/domain"
)

type WalletKind string

const (
	WalletKindPlatformEscrow     WalletKind = "platform_escrow"
	WalletKindPlatformCommission WalletKind = "platform_commission"
	WalletKindFleet              WalletKind = "fleet"
	WalletKindDriver             WalletKind = "driver"
)

// Wallet is a named balance holder. Platform wallets have a nil OwnerID.
// Balance is minor currency units (paise) and is only ever mutated through
// ledger entries inside a storage transaction, never written directly.
type Wallet struct {
	ID                 string // UUID
	Kind               WalletKind
	OwnerID            *string // nil for platform wallets
	Balance            int64   // minor units; non-negative
	Currency           string  // ISO code, e.g. "INR"
	ProviderAccountRef string  // external processor account reference
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewWallet creates an active zero-balance wallet.
func NewWallet(id string, kind WalletKind, ownerID *string, currency string) (*Wallet, error) {
	if id == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	switch kind {
	case WalletKindPlatformEscrow, WalletKindPlatformCommission:
		if ownerID != nil {
			return nil, domain.ErrInvalidArgument
		}
	case WalletKindFleet, WalletKindDriver:
		if ownerID == nil || *ownerID == "" {
			return nil, domain.ErrInvalidArgument
		}
	default:
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Wallet{
		ID:        id,
		Kind:      kind,
		OwnerID:   ownerID,
		Currency:  currency,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
