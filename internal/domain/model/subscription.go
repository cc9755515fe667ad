package model

import (
	"time"

	"logistics-payment-engine/internal/domain"
)

type SubscriptionTier string

const (
	TierBasic      SubscriptionTier = "basic"
	TierPremium    SubscriptionTier = "premium"
	TierEnterprise SubscriptionTier = "enterprise"
)

// NormalizeTier maps unknown input to the lowest tier instead of failing.
func NormalizeTier(s string) SubscriptionTier {
	switch SubscriptionTier(s) {
	case TierPremium:
		return TierPremium
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierBasic
	}
}

type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// Advance returns t plus one billing interval.
func (c BillingCycle) Advance(t time.Time) time.Time {
	switch c {
	case CycleQuarterly:
		return t.AddDate(0, 3, 0)
	case CycleYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

func (c BillingCycle) Valid() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	}
	return false
}

type FeeBasis string

const (
	FeeBasisPerFleet   FeeBasis = "per_fleet"
	FeeBasisPerVehicle FeeBasis = "per_vehicle"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// FleetSubscription is a recurring billing agreement for one fleet.
// While active, CurrentPeriodEnd always equals NextBillingDate.
// GracePeriodEnd is set only after a failed renewal payment.
type FleetSubscription struct {
	ID                 string // UUID
	FleetID            string
	Tier               SubscriptionTier
	Cycle              BillingCycle
	FeeAmount          int64 // minor units, per fee-basis unit
	FeeBasis           FeeBasis
	VehicleCount       int // used when FeeBasis is per_vehicle
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	NextBillingDate    time.Time
	GracePeriodEnd     *time.Time
	AutoRenew          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewFleetSubscription enrolls a fleet starting now.
func NewFleetSubscription(id, fleetID string, tier SubscriptionTier, cycle BillingCycle, feeAmount int64, basis FeeBasis, vehicleCount int, autoRenew bool) (*FleetSubscription, error) {
	if id == "" || fleetID == "" || !cycle.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if feeAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if basis == FeeBasisPerVehicle && vehicleCount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	end := cycle.Advance(now)
	return &FleetSubscription{
		ID:                 id,
		FleetID:            fleetID,
		Tier:               tier,
		Cycle:              cycle,
		FeeAmount:          feeAmount,
		FeeBasis:           basis,
		VehicleCount:       vehicleCount,
		Status:             SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   end,
		NextBillingDate:    end,
		AutoRenew:          autoRenew,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// ChargeAmount is the amount billed per cycle.
func (s *FleetSubscription) ChargeAmount() int64 {
	if s.FeeBasis == FeeBasisPerVehicle {
		return s.FeeAmount * int64(s.VehicleCount)
	}
	return s.FeeAmount
}

// InGrace reports whether the subscription is in its post-failure grace window.
func (s *FleetSubscription) InGrace(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.GracePeriodEnd != nil && now.Before(*s.GracePeriodEnd)
}
