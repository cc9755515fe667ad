//go:build !integration

// File: internal/usecase/commission_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
)

func TestCommissionCalculator_Calculate(t *testing.T) {
	ctx := context.Background()

	t.Run("should apply the configured rate per tier", func(t *testing.T) {
		configs := newMemConfigRepo()
		configs.set(model.ConfigKeyCommissionBasicBps, "700", model.ConfigCategoryCommission)
		configs.set(model.ConfigKeyCommissionPremiumBps, "500", model.ConfigCategoryCommission)
		configs.set(model.ConfigKeyCommissionEnterpriseBps, "300", model.ConfigCategoryCommission)
		calc := NewCommissionCalculator(configs, newTestLogger())

		cases := []struct {
			tier       model.SubscriptionTier
			amount     int64
			commission int64
			bps        int64
		}{
			// Rs 15,000.00 shipment at 7% is Rs 1,050.00
			{model.TierBasic, 1_500_000, 105_000, 700},
			{model.TierPremium, 1_500_000, 75_000, 500},
			{model.TierEnterprise, 1_500_000, 45_000, 300},
		}
		for _, tc := range cases {
			got, bps, err := calc.Calculate(ctx, tc.amount, tc.tier)
			if err != nil {
				t.Fatalf("Calculate(%s): %v", tc.tier, err)
			}
			if got != tc.commission || bps != tc.bps {
				t.Errorf("Calculate(%s) = (%d, %d), want (%d, %d)", tc.tier, got, bps, tc.commission, tc.bps)
			}
		}
	})

	t.Run("should fall back to defaults when config is absent", func(t *testing.T) {
		calc := NewCommissionCalculator(newMemConfigRepo(), newTestLogger())
		got, bps, err := calc.Calculate(ctx, 10_000, model.TierPremium)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if bps != 500 || got != 500 {
			t.Errorf("got (%d, %d), want (500, 500)", got, bps)
		}
	})

	t.Run("should fall back to defaults on malformed config", func(t *testing.T) {
		configs := newMemConfigRepo()
		configs.set(model.ConfigKeyCommissionBasicBps, "not-a-number", model.ConfigCategoryCommission)
		calc := NewCommissionCalculator(configs, newTestLogger())
		got, bps, err := calc.Calculate(ctx, 10_000, model.TierBasic)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if bps != 700 || got != 700 {
			t.Errorf("got (%d, %d), want (700, 700)", got, bps)
		}
	})

	t.Run("should fall back to defaults when config lookup fails", func(t *testing.T) {
		configs := newMemConfigRepo()
		configs.getErr = errors.New("boom")
		calc := NewCommissionCalculator(configs, newTestLogger())
		_, bps, err := calc.Calculate(ctx, 10_000, model.TierEnterprise)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if bps != 300 {
			t.Errorf("bps = %d, want 300", bps)
		}
	})

	t.Run("should treat unknown tiers as basic", func(t *testing.T) {
		calc := NewCommissionCalculator(newMemConfigRepo(), newTestLogger())
		_, bps, err := calc.Calculate(ctx, 10_000, model.SubscriptionTier("platinum"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if bps != 700 {
			t.Errorf("bps = %d, want basic rate 700", bps)
		}
	})

	t.Run("should round half to even", func(t *testing.T) {
		configs := newMemConfigRepo()
		configs.set(model.ConfigKeyCommissionBasicBps, "700", model.ConfigCategoryCommission)
		calc := NewCommissionCalculator(configs, newTestLogger())

		cases := []struct {
			amount int64
			want   int64
		}{
			// 7% of 150 paise is 10.5: rounds to the even 10
			{150, 10},
			// 7% of 250 paise is 17.5: rounds to the even 18
			{250, 18},
			// 7% of 100 paise is exactly 7
			{100, 7},
			// 7% of 155 paise is 10.85: rounds to 11
			{155, 11},
		}
		for _, tc := range cases {
			got, _, err := calc.Calculate(ctx, tc.amount, model.TierBasic)
			if err != nil {
				t.Fatalf("Calculate(%d): %v", tc.amount, err)
			}
			if got != tc.want {
				t.Errorf("Calculate(%d) = %d, want %d", tc.amount, got, tc.want)
			}
		}
	})

	t.Run("should cap commission at the gross amount", func(t *testing.T) {
		configs := newMemConfigRepo()
		configs.set(model.ConfigKeyCommissionBasicBps, "10000", model.ConfigCategoryCommission)
		calc := NewCommissionCalculator(configs, newTestLogger())
		got, _, err := calc.Calculate(ctx, 99, model.TierBasic)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != 99 {
			t.Errorf("commission = %d, want capped at 99", got)
		}
	})

	t.Run("should reject non-positive amounts", func(t *testing.T) {
		calc := NewCommissionCalculator(newMemConfigRepo(), newTestLogger())
		for _, amount := range []int64{0, -1} {
			if _, _, err := calc.Calculate(ctx, amount, model.TierBasic); !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("Calculate(%d): expected ErrInvalidAmount, got %v", amount, err)
			}
		}
	})

	t.Run("should reject out-of-range configured rates", func(t *testing.T) {
		configs := newMemConfigRepo()
		configs.set(model.ConfigKeyCommissionBasicBps, "10001", model.ConfigCategoryCommission)
		calc := NewCommissionCalculator(configs, newTestLogger())
		_, bps, err := calc.Calculate(ctx, 10_000, model.TierBasic)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if bps != 700 {
			t.Errorf("bps = %d, want default 700 for out-of-range config", bps)
		}
	})
}
