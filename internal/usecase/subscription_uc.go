// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/adapter"
	"logistics-payment-engine/internal/domain/ports/repository"
	"logistics-payment-engine/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionManager = (*subscriptionUC)(nil)

const defaultGraceDays = 7

// SubscriptionManager creates, bills and cancels recurring fleet
// subscriptions. Billing is cycle-driven: an external scheduler invokes
// ProcessSubscriptionPayment per due subscription; the manager holds no timers.
type SubscriptionManager interface {
	CreateFleetSubscription(ctx context.Context, fleetID string, tier model.SubscriptionTier, cycle model.BillingCycle, feeAmount int64, basis model.FeeBasis, vehicleCount int, autoRenew bool) (*model.FleetSubscription, error)

	// ProcessSubscriptionPayment charges one billing cycle. On success the
	// period advances by exactly one cycle interval; on failure the
	// subscription enters grace, then suspends after a failed post-grace
	// attempt. The failed charge transaction is returned alongside the error.
	ProcessSubscriptionPayment(ctx context.Context, subscriptionID string) (*model.PaymentTransaction, error)

	CancelSubscription(ctx context.Context, subscriptionID, actorID string) error
	IsFleetSuspended(ctx context.Context, fleetID string) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.FleetSubscription, error)
}

type subscriptionUC struct {
	subs      repository.SubscriptionRepository
	txns      repository.TransactionRepository
	wallets   repository.WalletRepository
	configs   repository.ConfigRepository
	gateway   adapter.PaymentGateway
	tm        repository.TransactionManager
	locker    Locker
	audit     *AuditLogger
	currency  string
	gwTimeout time.Duration
	log       *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	txns repository.TransactionRepository,
	wallets repository.WalletRepository,
	configs repository.ConfigRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	locker Locker,
	audit *AuditLogger,
	gatewayTimeout time.Duration,
	logger *zerolog.Logger,
) *subscriptionUC {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &subscriptionUC{
		subs:      subs,
		txns:      txns,
		wallets:   wallets,
		configs:   configs,
		gateway:   gateway,
		tm:        tm,
		locker:    locker,
		audit:     audit,
		currency:  "INR",
		gwTimeout: gatewayTimeout,
		log:       logger,
	}
}

func subscriptionLockKey(id string) string { return "subscription:" + id }

func (u *subscriptionUC) CreateFleetSubscription(ctx context.Context, fleetID string, tier model.SubscriptionTier, cycle model.BillingCycle, feeAmount int64, basis model.FeeBasis, vehicleCount int, autoRenew bool) (*model.FleetSubscription, error) {
	if existing, err := u.subs.FindCurrentByFleet(ctx, nil, fleetID); err == nil && existing != nil {
		return nil, fmt.Errorf("fleet %s already subscribed: %w", fleetID, domain.ErrAlreadyExists)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	sub, err := model.NewFleetSubscription(uuid.NewString(), fleetID, model.NormalizeTier(string(tier)), cycle, feeAmount, basis, vehicleCount, autoRenew)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, nil, sub); err != nil {
		return nil, err
	}
	metrics.IncSubscription("created")
	u.audit.Log(ctx, sub.ID, "subscription.created", fleetID, model.ActorTypeFleet, nil, subscriptionSnapshot(sub))
	return sub, nil
}

func (u *subscriptionUC) ProcessSubscriptionPayment(ctx context.Context, subscriptionID string) (*model.PaymentTransaction, error) {
	if subscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	// serialize billing attempts per subscription across instances
	lockKey := "billing:sub:" + subscriptionID
	token, err := u.locker.TryLock(ctx, lockKey, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("billing already in progress: %w", domain.ErrLockNotAcquired)
	}
	defer func() { _ = u.locker.Unlock(ctx, lockKey, token) }()

	sub, err := u.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubscriptionStatusActive {
		return nil, fmt.Errorf("subscription is %s: %w", sub.Status, domain.ErrStateConflict)
	}

	now := time.Now()
	charge := &model.PaymentTransaction{
		ID:        uuid.NewString(),
		PayerID:   sub.FleetID,
		PayeeID:   "platform",
		Amount:    sub.ChargeAmount(),
		Currency:  u.currency,
		Kind:      model.TransactionKindSubscription,
		Status:    model.TransactionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.txns.Save(ctx, nil, charge); err != nil {
		return nil, err
	}
	if err := u.txns.UpdateStatus(ctx, nil, charge.ID, model.TransactionStatusProcessing, nil, nil); err != nil {
		return nil, err
	}
	charge.Status = model.TransactionStatusProcessing

	cctx, cancel := context.WithTimeout(ctx, u.gwTimeout)
	res, gerr := u.gateway.Charge(cctx, adapter.ChargeRequest{
		TransactionID: charge.ID,
		Amount:        charge.Amount,
		Currency:      charge.Currency,
		PayerRef:      sub.FleetID,
		PayeeRef:      "platform",
		Description:   fmt.Sprintf("%s subscription renewal", sub.Tier),
	})
	cancel()
	if gerr != nil {
		if isTimeout(gerr) {
			// stays processing; the reconciliation pass resolves it
			metrics.IncGatewayError("timeout")
			return charge, fmt.Errorf("subscription charge %s: %w", charge.ID, domain.ErrGatewayTimeout)
		}
		metrics.IncGatewayError("unavailable")
		if ferr := u.recordBillingFailure(ctx, sub, charge); ferr != nil {
			return charge, ferr
		}
		return charge, fmt.Errorf("subscription charge %s: %w", charge.ID, domain.ErrGatewayUnavailable)
	}

	if err := u.txns.SetProviderResponse(ctx, nil, charge.ID, &res.ProviderTxnID, res.Raw); err != nil {
		return nil, err
	}
	if err := u.advancePeriod(ctx, sub, charge.ID); err != nil {
		return nil, err
	}
	charge.Status = model.TransactionStatusComplete
	metrics.IncSubscription("renewed")
	metrics.AddSubscriptionRevenue(u.currency, charge.Amount)
	return charge, nil
}

// advancePeriod marks the charge complete, credits platform revenue and rolls
// the billing period forward, all in one transaction.
func (u *subscriptionUC) advancePeriod(ctx context.Context, sub *model.FleetSubscription, chargeID string) error {
	old := subscriptionSnapshot(sub)
	err := u.tm.WithLockedTx(ctx, pgx.TxOptions{}, subscriptionLockKey(sub.ID), func(ctx context.Context, tx repository.Tx) error {
		ok, uerr := u.txns.UpdateStatusIf(ctx, tx, chargeID, []model.TransactionStatus{model.TransactionStatusProcessing}, model.TransactionStatusComplete)
		if uerr != nil {
			return uerr
		}
		if !ok {
			return domain.ErrStateConflict
		}
		revenueWallet, werr := u.wallets.GetOrCreate(ctx, tx, nil, model.WalletKindPlatformCommission, u.currency)
		if werr != nil {
			return werr
		}
		if berr := u.wallets.AdjustBalance(ctx, tx, revenueWallet.ID, sub.ChargeAmount()); berr != nil {
			return berr
		}

		sub.CurrentPeriodStart = sub.CurrentPeriodEnd
		sub.CurrentPeriodEnd = sub.Cycle.Advance(sub.CurrentPeriodEnd)
		sub.NextBillingDate = sub.CurrentPeriodEnd
		sub.GracePeriodEnd = nil
		sub.UpdatedAt = time.Now()
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return err
	}
	u.audit.Log(ctx, chargeID, "subscription.renewed", sub.FleetID, model.ActorTypeSystem, old, subscriptionSnapshot(sub))
	return nil
}

// recordBillingFailure marks the charge failed and applies the grace policy:
// first failure opens a grace window; a failure after it expires suspends.
func (u *subscriptionUC) recordBillingFailure(ctx context.Context, sub *model.FleetSubscription, charge *model.PaymentTransaction) error {
	old := subscriptionSnapshot(sub)
	now := time.Now()
	err := u.tm.WithLockedTx(ctx, pgx.TxOptions{}, subscriptionLockKey(sub.ID), func(ctx context.Context, tx repository.Tx) error {
		if _, uerr := u.txns.UpdateStatusIf(ctx, tx, charge.ID, []model.TransactionStatus{model.TransactionStatusProcessing}, model.TransactionStatusFailed); uerr != nil {
			return uerr
		}
		if sub.GracePeriodEnd == nil {
			g := now.Add(time.Duration(u.graceDays(ctx)) * 24 * time.Hour)
			sub.GracePeriodEnd = &g
		} else if now.After(*sub.GracePeriodEnd) {
			sub.Status = model.SubscriptionStatusSuspended
		}
		sub.UpdatedAt = now
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return err
	}
	charge.Status = model.TransactionStatusFailed
	if sub.Status == model.SubscriptionStatusSuspended {
		metrics.IncSubscription("suspended")
		u.audit.Log(ctx, charge.ID, "subscription.suspended", sub.FleetID, model.ActorTypeSystem, old, subscriptionSnapshot(sub))
	} else {
		metrics.IncSubscription("grace")
		u.audit.Log(ctx, charge.ID, "subscription.grace", sub.FleetID, model.ActorTypeSystem, old, subscriptionSnapshot(sub))
	}
	return nil
}

func (u *subscriptionUC) CancelSubscription(ctx context.Context, subscriptionID, actorID string) error {
	sub, err := u.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status == model.SubscriptionStatusCancelled {
		return nil
	}
	old := subscriptionSnapshot(sub)
	err = u.tm.WithLockedTx(ctx, pgx.TxOptions{}, subscriptionLockKey(sub.ID), func(ctx context.Context, tx repository.Tx) error {
		sub.Status = model.SubscriptionStatusCancelled
		sub.UpdatedAt = time.Now()
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return err
	}
	metrics.IncSubscription("cancelled")
	u.audit.Log(ctx, sub.ID, "subscription.cancelled", actorID, model.ActorTypeAdmin, old, subscriptionSnapshot(sub))
	return nil
}

func (u *subscriptionUC) IsFleetSuspended(ctx context.Context, fleetID string) (bool, error) {
	sub, err := u.subs.FindCurrentByFleet(ctx, nil, fleetID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.Status == model.SubscriptionStatusSuspended, nil
}

func (u *subscriptionUC) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.FleetSubscription, error) {
	return u.subs.ListDue(ctx, nil, now, limit)
}

func (u *subscriptionUC) graceDays(ctx context.Context) int {
	cfg, err := u.configs.Get(ctx, model.ConfigKeyBillingGraceDays)
	if err != nil {
		return defaultGraceDays
	}
	d, perr := strconv.Atoi(cfg.Value)
	if perr != nil || d <= 0 {
		u.log.Warn().Str("value", cfg.Value).Msg("malformed grace days config; using default")
		return defaultGraceDays
	}
	return d
}
