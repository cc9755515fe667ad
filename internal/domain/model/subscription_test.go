//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"logistics-payment-engine/internal/domain"
)

func TestBillingCycle_Advance(t *testing.T) {
	base := time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		cycle BillingCycle
		want  time.Time
	}{
		// AddDate normalizes Jan 31 + 1 month to Mar 3 (non-leap) per time package rules
		{CycleMonthly, base.AddDate(0, 1, 0)},
		{CycleQuarterly, base.AddDate(0, 3, 0)},
		{CycleYearly, base.AddDate(1, 0, 0)},
		{BillingCycle("weekly"), base.AddDate(0, 1, 0)}, // unknown defaults to monthly
	}
	for _, tc := range cases {
		if got := tc.cycle.Advance(base); !got.Equal(tc.want) {
			t.Errorf("%s.Advance = %v, want %v", tc.cycle, got, tc.want)
		}
	}
}

func TestNewFleetSubscription(t *testing.T) {
	t.Run("should start active with one prepaid cycle", func(t *testing.T) {
		sub, err := NewFleetSubscription("sub-1", "fleet-1", TierPremium, CycleMonthly, 100_000, FeeBasisPerFleet, 0, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sub.Status != SubscriptionStatusActive {
			t.Errorf("status = %s, want active", sub.Status)
		}
		if !sub.CurrentPeriodEnd.Equal(CycleMonthly.Advance(sub.CurrentPeriodStart)) {
			t.Error("period end must be one cycle past the start")
		}
		if !sub.NextBillingDate.Equal(sub.CurrentPeriodEnd) {
			t.Error("next billing date must equal the period end")
		}
	})

	t.Run("should validate input", func(t *testing.T) {
		if _, err := NewFleetSubscription("", "fleet-1", TierBasic, CycleMonthly, 1, FeeBasisPerFleet, 0, true); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("empty id: got %v", err)
		}
		if _, err := NewFleetSubscription("sub-1", "fleet-1", TierBasic, BillingCycle("fortnightly"), 1, FeeBasisPerFleet, 0, true); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("bad cycle: got %v", err)
		}
		if _, err := NewFleetSubscription("sub-1", "fleet-1", TierBasic, CycleMonthly, 0, FeeBasisPerFleet, 0, true); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("zero fee: got %v", err)
		}
		if _, err := NewFleetSubscription("sub-1", "fleet-1", TierBasic, CycleMonthly, 1, FeeBasisPerVehicle, 0, true); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("per-vehicle without vehicles: got %v", err)
		}
	})
}

func TestFleetSubscription_ChargeAmount(t *testing.T) {
	perFleet, _ := NewFleetSubscription("sub-1", "fleet-1", TierBasic, CycleMonthly, 250_000, FeeBasisPerFleet, 40, true)
	if got := perFleet.ChargeAmount(); got != 250_000 {
		t.Errorf("per-fleet charge = %d, want 250000 (vehicle count ignored)", got)
	}
	perVehicle, _ := NewFleetSubscription("sub-2", "fleet-2", TierBasic, CycleMonthly, 50_000, FeeBasisPerVehicle, 12, true)
	if got := perVehicle.ChargeAmount(); got != 600_000 {
		t.Errorf("per-vehicle charge = %d, want 600000", got)
	}
}

func TestFleetSubscription_InGrace(t *testing.T) {
	sub, _ := NewFleetSubscription("sub-1", "fleet-1", TierBasic, CycleMonthly, 1, FeeBasisPerFleet, 0, true)
	now := time.Now()
	if sub.InGrace(now) {
		t.Error("no grace window set, must not be in grace")
	}
	future := now.Add(time.Hour)
	sub.GracePeriodEnd = &future
	if !sub.InGrace(now) {
		t.Error("expected in grace before the window ends")
	}
	if sub.InGrace(future.Add(time.Second)) {
		t.Error("grace must end with the window")
	}
	sub.Status = SubscriptionStatusSuspended
	if sub.InGrace(now) {
		t.Error("a suspended subscription is not in grace")
	}
}

func TestNormalizeTier(t *testing.T) {
	cases := map[string]SubscriptionTier{
		"basic":      TierBasic,
		"premium":    TierPremium,
		"enterprise": TierEnterprise,
		"platinum":   TierBasic,
		"":           TierBasic,
	}
	for in, want := range cases {
		if got := NormalizeTier(in); got != want {
			t.Errorf("NormalizeTier(%q) = %s, want %s", in, got, want)
		}
	}
}
