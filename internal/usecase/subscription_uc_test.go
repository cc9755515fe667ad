//go:build !integration

// File: internal/usecase/subscription_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
)

type subUCTestDeps struct {
	subs    *memSubRepo
	txns    *memTxnRepo
	wallets *memWalletRepo
	configs *memConfigRepo
	gateway *mockGateway
	tm      *mockTxManager
	locker  *memLocker
	audit   *memAuditRepo
	uc      SubscriptionManager
}

func newSubUCDeps() *subUCTestDeps {
	deps := &subUCTestDeps{
		subs:    newMemSubRepo(),
		txns:    newMemTxnRepo(),
		wallets: newMemWalletRepo(),
		configs: newMemConfigRepo(),
		gateway: newMockGateway(),
		tm:      newMockTxManager(),
		locker:  newMemLocker(),
		audit:   newMemAuditRepo(),
	}
	logger := newTestLogger()
	auditLog := NewAuditLogger(deps.audit, logger)
	deps.uc = NewSubscriptionUseCase(deps.subs, deps.txns, deps.wallets, deps.configs, deps.gateway, deps.tm, deps.locker, auditLog, time.Second, logger)
	return deps
}

func TestSubscriptionUseCase_CreateFleetSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("should enroll a fleet with one cycle prepaid period", func(t *testing.T) {
		deps := newSubUCDeps()
		sub, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierPremium, model.CycleMonthly, 250_000, model.FeeBasisPerFleet, 0, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("status = %s, want active", sub.Status)
		}
		if !sub.NextBillingDate.Equal(sub.CurrentPeriodEnd) {
			t.Errorf("next billing %v != period end %v", sub.NextBillingDate, sub.CurrentPeriodEnd)
		}
		wantEnd := model.CycleMonthly.Advance(sub.CurrentPeriodStart)
		if !sub.CurrentPeriodEnd.Equal(wantEnd) {
			t.Errorf("period end = %v, want %v", sub.CurrentPeriodEnd, wantEnd)
		}
		deps.audit.mustHaveAction(t, "subscription.created")
	})

	t.Run("should refuse a second live subscription for the same fleet", func(t *testing.T) {
		deps := newSubUCDeps()
		if _, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierBasic, model.CycleMonthly, 100_000, model.FeeBasisPerFleet, 0, true); err != nil {
			t.Fatalf("first create: %v", err)
		}
		_, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierPremium, model.CycleMonthly, 100_000, model.FeeBasisPerFleet, 0, true)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("should allow re-enrollment after cancellation", func(t *testing.T) {
		deps := newSubUCDeps()
		first, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierBasic, model.CycleMonthly, 100_000, model.FeeBasisPerFleet, 0, true)
		if err != nil {
			t.Fatalf("first create: %v", err)
		}
		if err := deps.uc.CancelSubscription(ctx, first.ID, "admin-1"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierBasic, model.CycleMonthly, 100_000, model.FeeBasisPerFleet, 0, true); err != nil {
			t.Errorf("re-enroll after cancel: %v", err)
		}
	})

	t.Run("should validate per-vehicle enrollment", func(t *testing.T) {
		deps := newSubUCDeps()
		if _, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierBasic, model.CycleMonthly, 50_000, model.FeeBasisPerVehicle, 0, true); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("zero vehicles: expected ErrInvalidArgument, got %v", err)
		}
		sub, err := deps.uc.CreateFleetSubscription(ctx, "fleet-2", model.TierBasic, model.CycleMonthly, 50_000, model.FeeBasisPerVehicle, 12, true)
		if err != nil {
			t.Fatalf("per-vehicle create: %v", err)
		}
		if got := sub.ChargeAmount(); got != 600_000 {
			t.Errorf("charge amount = %d, want 600000", got)
		}
	})
}

func TestSubscriptionUseCase_ProcessSubscriptionPayment(t *testing.T) {
	ctx := context.Background()

	enroll := func(t *testing.T, deps *subUCTestDeps) *model.FleetSubscription {
		t.Helper()
		sub, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierPremium, model.CycleMonthly, 250_000, model.FeeBasisPerFleet, 0, true)
		if err != nil {
			t.Fatalf("enroll: %v", err)
		}
		return sub
	}

	t.Run("should advance the period by exactly one cycle on success", func(t *testing.T) {
		deps := newSubUCDeps()
		sub := enroll(t, deps)
		prevEnd := sub.CurrentPeriodEnd

		charge, err := deps.uc.ProcessSubscriptionPayment(ctx, sub.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if charge.Status != model.TransactionStatusComplete {
			t.Errorf("charge status = %s, want complete", charge.Status)
		}
		if charge.Amount != 250_000 {
			t.Errorf("charge amount = %d, want 250000", charge.Amount)
		}

		after, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if !after.CurrentPeriodStart.Equal(prevEnd) {
			t.Errorf("period start = %v, want previous end %v", after.CurrentPeriodStart, prevEnd)
		}
		wantEnd := model.CycleMonthly.Advance(prevEnd)
		if !after.CurrentPeriodEnd.Equal(wantEnd) {
			t.Errorf("period end = %v, want %v", after.CurrentPeriodEnd, wantEnd)
		}
		if !after.NextBillingDate.Equal(wantEnd) {
			t.Errorf("next billing = %v, want %v", after.NextBillingDate, wantEnd)
		}

		revenue, err := deps.wallets.FindByOwnerAndKind(ctx, nil, nil, model.WalletKindPlatformCommission)
		if err != nil {
			t.Fatalf("revenue wallet: %v", err)
		}
		if revenue.Balance != 250_000 {
			t.Errorf("revenue balance = %d, want 250000", revenue.Balance)
		}
		deps.audit.mustHaveAction(t, "subscription.renewed")
	})

	t.Run("should open a grace window on the first failed charge", func(t *testing.T) {
		deps := newSubUCDeps()
		sub := enroll(t, deps)
		deps.gateway.failCharges(errors.New("card declined"))

		charge, err := deps.uc.ProcessSubscriptionPayment(ctx, sub.ID)
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
		if charge == nil || charge.Status != model.TransactionStatusFailed {
			t.Fatalf("charge = %+v, want failed transaction returned", charge)
		}

		after, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if after.Status != model.SubscriptionStatusActive {
			t.Errorf("status = %s, want still active in grace", after.Status)
		}
		if after.GracePeriodEnd == nil {
			t.Fatal("expected a grace period end to be set")
		}
		if !after.InGrace(time.Now()) {
			t.Error("expected subscription to report in-grace")
		}
		deps.audit.mustHaveAction(t, "subscription.grace")
	})

	t.Run("should honor the configured grace days", func(t *testing.T) {
		deps := newSubUCDeps()
		deps.configs.set(model.ConfigKeyBillingGraceDays, "3", model.ConfigCategoryBilling)
		sub := enroll(t, deps)
		deps.gateway.failCharges(errors.New("card declined"))

		_, _ = deps.uc.ProcessSubscriptionPayment(ctx, sub.ID)
		after, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if after.GracePeriodEnd == nil {
			t.Fatal("expected a grace period end to be set")
		}
		until := time.Until(*after.GracePeriodEnd)
		if until > 3*24*time.Hour || until < 3*24*time.Hour-time.Minute {
			t.Errorf("grace window = %v, want about 72h", until)
		}
	})

	t.Run("should suspend after a failure past the grace window", func(t *testing.T) {
		deps := newSubUCDeps()
		sub := enroll(t, deps)
		expired := time.Now().Add(-time.Hour)
		sub.GracePeriodEnd = &expired
		if err := deps.subs.Save(ctx, nil, sub); err != nil {
			t.Fatalf("seed grace: %v", err)
		}
		deps.gateway.failCharges(errors.New("card declined"))

		_, err := deps.uc.ProcessSubscriptionPayment(ctx, sub.ID)
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
		after, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if after.Status != model.SubscriptionStatusSuspended {
			t.Errorf("status = %s, want suspended", after.Status)
		}

		suspended, err := deps.uc.IsFleetSuspended(ctx, "fleet-1")
		if err != nil {
			t.Fatalf("IsFleetSuspended: %v", err)
		}
		if !suspended {
			t.Error("expected the fleet to report suspended")
		}
		deps.audit.mustHaveAction(t, "subscription.suspended")
	})

	t.Run("should leave the charge processing on gateway timeout", func(t *testing.T) {
		deps := newSubUCDeps()
		sub := enroll(t, deps)
		prevEnd := sub.CurrentPeriodEnd
		deps.gateway.failCharges(context.DeadlineExceeded)

		charge, err := deps.uc.ProcessSubscriptionPayment(ctx, sub.ID)
		if !errors.Is(err, domain.ErrGatewayTimeout) {
			t.Fatalf("expected ErrGatewayTimeout, got %v", err)
		}
		if charge == nil {
			t.Fatal("expected the in-flight charge to be returned")
		}
		if got := deps.txns.status(charge.ID); got != model.TransactionStatusProcessing {
			t.Errorf("charge status = %s, want processing (left for reconciliation)", got)
		}
		after, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if !after.CurrentPeriodEnd.Equal(prevEnd) {
			t.Error("period must not advance until the outcome is known")
		}
		if after.GracePeriodEnd != nil {
			t.Error("a timeout is not a failure; grace must not open")
		}
	})

	t.Run("should refuse billing a non-active subscription", func(t *testing.T) {
		deps := newSubUCDeps()
		sub := enroll(t, deps)
		if err := deps.uc.CancelSubscription(ctx, sub.ID, "admin-1"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, err := deps.uc.ProcessSubscriptionPayment(ctx, sub.ID); !errors.Is(err, domain.ErrStateConflict) {
			t.Errorf("expected ErrStateConflict, got %v", err)
		}
	})

	t.Run("should refuse concurrent billing of the same subscription", func(t *testing.T) {
		deps := newSubUCDeps()
		sub := enroll(t, deps)
		if _, err := deps.locker.TryLock(ctx, "billing:sub:"+sub.ID, time.Minute); err != nil {
			t.Fatalf("seed lock: %v", err)
		}
		if _, err := deps.uc.ProcessSubscriptionPayment(ctx, sub.ID); !errors.Is(err, domain.ErrLockNotAcquired) {
			t.Errorf("expected ErrLockNotAcquired, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_CancelSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("should cancel and be idempotent", func(t *testing.T) {
		deps := newSubUCDeps()
		sub, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierBasic, model.CycleMonthly, 100_000, model.FeeBasisPerFleet, 0, true)
		if err != nil {
			t.Fatalf("enroll: %v", err)
		}
		if err := deps.uc.CancelSubscription(ctx, sub.ID, "admin-1"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		after, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if after.Status != model.SubscriptionStatusCancelled {
			t.Errorf("status = %s, want cancelled", after.Status)
		}
		if err := deps.uc.CancelSubscription(ctx, sub.ID, "admin-1"); err != nil {
			t.Errorf("second cancel should be a no-op, got %v", err)
		}
		deps.audit.mustHaveAction(t, "subscription.cancelled")
	})

	t.Run("should report unknown fleets as not suspended", func(t *testing.T) {
		deps := newSubUCDeps()
		suspended, err := deps.uc.IsFleetSuspended(ctx, "fleet-none")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if suspended {
			t.Error("a fleet with no subscription is not suspended")
		}
	})
}

func TestSubscriptionUseCase_ListDue(t *testing.T) {
	ctx := context.Background()
	deps := newSubUCDeps()

	sub, err := deps.uc.CreateFleetSubscription(ctx, "fleet-1", model.TierBasic, model.CycleMonthly, 100_000, model.FeeBasisPerFleet, 0, true)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := deps.uc.CreateFleetSubscription(ctx, "fleet-2", model.TierBasic, model.CycleMonthly, 100_000, model.FeeBasisPerFleet, 0, true); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	due, err := deps.uc.ListDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("freshly enrolled subscriptions are prepaid, got %d due", len(due))
	}

	// push fleet-1 past its billing date
	sub.NextBillingDate = time.Now().Add(-time.Hour)
	if err := deps.subs.Save(ctx, nil, sub); err != nil {
		t.Fatalf("seed due date: %v", err)
	}
	due, err = deps.uc.ListDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 1 || due[0].ID != sub.ID {
		t.Fatalf("due = %d entries, want exactly fleet-1's subscription", len(due))
	}
}
