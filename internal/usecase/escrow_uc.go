// File: internal/usecase/escrow_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
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
var _ EscrowManager = (*escrowUC)(nil)

// Locker serializes sections that span gateway calls. The redis locker in
// infra satisfies it; tests use an in-memory one.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// EscrowManager creates, holds, releases and refunds per-shipment escrow.
type EscrowManager interface {
	// CreateShipmentEscrow charges the shipper for the gross amount as a pair
	// of ledger legs: escrow-in for the net (held) and commission for the
	// platform cut. Idempotent per shipment id.
	CreateShipmentEscrow(ctx context.Context, shipmentID, payerID, payeeID string, payeeKind model.WalletKind, grossAmount int64, payerTier model.SubscriptionTier) (*model.PaymentTransaction, error)

	// ReleaseEscrow settles the held net amount to the payee wallet.
	// Replays after a prior success return the existing settlement and no error.
	ReleaseEscrow(ctx context.Context, shipmentID, actorID string) (*model.PaymentTransaction, error)

	// RefundEscrow returns up to the available amount to the shipper,
	// debiting escrow (pre-settlement) or the payee wallet (post-settlement).
	RefundEscrow(ctx context.Context, shipmentID string, amount int64, reason, actorID string) (*model.PaymentTransaction, error)

	// MarkDisputed freezes a held escrow for dispute resolution.
	MarkDisputed(ctx context.Context, shipmentID, disputeID string) error

	// AvailableForRefund is the amount currently held or settled for the
	// shipment minus prior refunds.
	AvailableForRefund(ctx context.Context, shipmentID string) (int64, error)
}

type escrowUC struct {
	txns       repository.TransactionRepository
	wallets    repository.WalletRepository
	configs    repository.ConfigRepository
	commission CommissionCalculator
	gateway    adapter.PaymentGateway
	tm         repository.TransactionManager
	locker     Locker
	audit      *AuditLogger
	currency   string
	gwTimeout  time.Duration
	log        *zerolog.Logger
}

func NewEscrowUseCase(
	txns repository.TransactionRepository,
	wallets repository.WalletRepository,
	configs repository.ConfigRepository,
	commission CommissionCalculator,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	locker Locker,
	audit *AuditLogger,
	gatewayTimeout time.Duration,
	logger *zerolog.Logger,
) *escrowUC {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &escrowUC{
		txns:       txns,
		wallets:    wallets,
		configs:    configs,
		commission: commission,
		gateway:    gateway,
		tm:         tm,
		locker:     locker,
		audit:      audit,
		currency:   "INR",
		gwTimeout:  gatewayTimeout,
		log:        logger,
	}
}

func shipmentLockKey(shipmentID string) string { return "shipment:" + shipmentID }

func escrowLive(s model.TransactionStatus) bool {
	return s != model.TransactionStatusFailed && s != model.TransactionStatusCancelled
}

func (u *escrowUC) CreateShipmentEscrow(ctx context.Context, shipmentID, payerID, payeeID string, payeeKind model.WalletKind, grossAmount int64, payerTier model.SubscriptionTier) (*model.PaymentTransaction, error) {
	if shipmentID == "" || payerID == "" || payeeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if payeeKind != model.WalletKindFleet && payeeKind != model.WalletKindDriver {
		return nil, domain.ErrInvalidArgument
	}
	if grossAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	// Replay with the same shipment id returns the live escrow unchanged.
	if existing, err := u.txns.FindByShipmentAndKind(ctx, nil, shipmentID, model.TransactionKindEscrowIn); err == nil {
		if escrowLive(existing.Status) {
			return existing, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	commission, bps, err := u.commission.Calculate(ctx, grossAmount, payerTier)
	if err != nil {
		return nil, err
	}
	net := grossAmount - commission
	if net < 0 {
		return nil, domain.ErrInvalidAmount
	}

	var escrowIn, commTxn *model.PaymentTransaction
	err = u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(shipmentID), func(ctx context.Context, tx repository.Tx) error {
		// re-check under the shipment lock
		if existing, ferr := u.txns.FindByShipmentAndKind(ctx, tx, shipmentID, model.TransactionKindEscrowIn); ferr == nil {
			if escrowLive(existing.Status) {
				escrowIn = existing
				return nil
			}
		} else if !errors.Is(ferr, domain.ErrNotFound) {
			return ferr
		}

		escrowWallet, werr := u.wallets.GetOrCreate(ctx, tx, nil, model.WalletKindPlatformEscrow, u.currency)
		if werr != nil {
			return fmt.Errorf("resolve escrow wallet: %w", werr)
		}
		// ensure the payee wallet exists before any settlement can need it
		if _, werr := u.wallets.GetOrCreate(ctx, tx, &payeeID, payeeKind, u.currency); werr != nil {
			return fmt.Errorf("resolve payee wallet: %w", werr)
		}

		now := time.Now()
		shipRef := shipmentID
		escrowIn = &model.PaymentTransaction{
			ID:             uuid.NewString(),
			ShipmentID:     &shipRef,
			PayerID:        payerID,
			PayeeID:        payeeID,
			Amount:         net,
			Currency:       u.currency,
			Kind:           model.TransactionKindEscrowIn,
			Status:         model.TransactionStatusPending,
			EscrowWalletID: &escrowWallet.ID,
			CommissionBps:  &bps,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		commTxn = &model.PaymentTransaction{
			ID:            uuid.NewString(),
			ShipmentID:    &shipRef,
			PayerID:       payerID,
			PayeeID:       "platform",
			Amount:        commission,
			Currency:      u.currency,
			Kind:          model.TransactionKindCommission,
			Status:        model.TransactionStatusPending,
			CommissionBps: &bps,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if serr := u.txns.Save(ctx, tx, escrowIn); serr != nil {
			return serr
		}
		return u.txns.Save(ctx, tx, commTxn)
	})
	if err != nil {
		return nil, err
	}
	if commTxn == nil {
		// replay resolved under the lock
		return escrowIn, nil
	}

	// Escrow-in leg first: if it fails, the commission leg is cancelled and
	// the gateway is never called for it.
	if err := u.submitCharge(ctx, escrowIn); err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) {
			// stays processing; the reconciliation pass resolves it
			return escrowIn, err
		}
		u.failPair(ctx, escrowIn.ID, commTxn.ID)
		metrics.IncEscrow("failed")
		return nil, err
	}

	err = u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(shipmentID), func(ctx context.Context, tx repository.Tx) error {
		ok, uerr := u.txns.UpdateStatusIf(ctx, tx, escrowIn.ID, []model.TransactionStatus{model.TransactionStatusProcessing}, model.TransactionStatusHeld)
		if uerr != nil {
			return uerr
		}
		if !ok {
			return domain.ErrStateConflict
		}
		// credit and status change commit together: no balance drift
		return u.wallets.AdjustBalance(ctx, tx, *escrowIn.EscrowWalletID, net)
	})
	if err != nil {
		return nil, err
	}
	escrowIn.Status = model.TransactionStatusHeld

	// Commission leg. A hard failure here reverses the held escrow-in:
	// partial success is not a valid end state for the pair.
	if err := u.submitCharge(ctx, commTxn); err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) {
			return escrowIn, err
		}
		if rerr := u.reverseHeldEscrow(ctx, escrowIn, commTxn); rerr != nil {
			u.log.Error().Err(rerr).Str("shipment_id", shipmentID).Msg("failed to reverse escrow after commission failure")
		}
		metrics.IncEscrow("reversed")
		return nil, err
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, uerr := u.txns.UpdateStatusIf(ctx, tx, commTxn.ID, []model.TransactionStatus{model.TransactionStatusProcessing}, model.TransactionStatusComplete)
		if uerr != nil {
			return uerr
		}
		if !ok {
			return domain.ErrStateConflict
		}
		commWallet, werr := u.wallets.GetOrCreate(ctx, tx, nil, model.WalletKindPlatformCommission, u.currency)
		if werr != nil {
			return werr
		}
		return u.wallets.AdjustBalance(ctx, tx, commWallet.ID, commTxn.Amount)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncEscrow("held")
	metrics.AddEscrowVolume(u.currency, net)
	u.audit.Log(ctx, escrowIn.ID, "escrow.created", payerID, model.ActorTypeShipper, nil, txnSnapshot(escrowIn))
	return escrowIn, nil
}

func (u *escrowUC) ReleaseEscrow(ctx context.Context, shipmentID, actorID string) (*model.PaymentTransaction, error) {
	if shipmentID == "" || actorID == "" {
		return nil, domain.ErrInvalidArgument
	}
	escrowIn, err := u.txns.FindByShipmentAndKind(ctx, nil, shipmentID, model.TransactionKindEscrowIn)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no escrow for shipment %s: %w", shipmentID, domain.ErrStateConflict)
	}
	if err != nil {
		return nil, err
	}
	if escrowIn.Status == model.TransactionStatusSettled {
		// idempotent replay: exactly one settlement per shipment
		return u.txns.FindByShipmentAndKind(ctx, nil, shipmentID, model.TransactionKindSettlement)
	}
	if escrowIn.Status != model.TransactionStatusHeld && escrowIn.Status != model.TransactionStatusDisputed {
		return nil, fmt.Errorf("escrow is %s: %w", escrowIn.Status, domain.ErrStateConflict)
	}

	token, err := u.locker.TryLock(ctx, "escrow:release:"+shipmentID, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("concurrent release in progress: %w", domain.ErrStateConflict)
	}
	defer func() { _ = u.locker.Unlock(ctx, "escrow:release:"+shipmentID, token) }()

	var settlement *model.PaymentTransaction
	err = u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(shipmentID), func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		ok, uerr := u.txns.MarkSettled(ctx, tx, escrowIn.ID, []model.TransactionStatus{model.TransactionStatusHeld, model.TransactionStatusDisputed}, now)
		if uerr != nil {
			return uerr
		}
		if !ok {
			cur, ferr := u.txns.FindByID(ctx, tx, escrowIn.ID)
			if ferr != nil {
				return ferr
			}
			if cur.Status == model.TransactionStatusSettled {
				s, serr := u.txns.FindByShipmentAndKind(ctx, tx, shipmentID, model.TransactionKindSettlement)
				if serr != nil {
					return serr
				}
				settlement = s
				return nil
			}
			return domain.ErrStateConflict
		}

		if berr := u.wallets.AdjustBalance(ctx, tx, *escrowIn.EscrowWalletID, -escrowIn.Amount); berr != nil {
			return berr
		}
		payeeWallet, werr := u.wallets.FindActiveByOwner(ctx, tx, escrowIn.PayeeID)
		if errors.Is(werr, domain.ErrNotFound) {
			return domain.ErrWalletNotFound
		}
		if werr != nil {
			return werr
		}
		if berr := u.wallets.AdjustBalance(ctx, tx, payeeWallet.ID, escrowIn.Amount); berr != nil {
			return berr
		}

		settlement = &model.PaymentTransaction{
			ID:             uuid.NewString(),
			ShipmentID:     escrowIn.ShipmentID,
			PayerID:        "platform",
			PayeeID:        escrowIn.PayeeID,
			Amount:         escrowIn.Amount,
			Currency:       escrowIn.Currency,
			Kind:           model.TransactionKindSettlement,
			Status:         model.TransactionStatusComplete,
			EscrowWalletID: escrowIn.EscrowWalletID,
			CreatedAt:      now,
			UpdatedAt:      now,
			ProcessedAt:    &now,
			SettledAt:      &now,
		}
		return u.txns.Save(ctx, tx, settlement)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncEscrow("settled")
	u.audit.Log(ctx, settlement.ID, "escrow.released", actorID, model.ActorTypeSystem, txnSnapshot(escrowIn), txnSnapshot(settlement))
	return settlement, nil
}

func (u *escrowUC) MarkDisputed(ctx context.Context, shipmentID, disputeID string) error {
	escrowIn, err := u.txns.FindByShipmentAndKind(ctx, nil, shipmentID, model.TransactionKindEscrowIn)
	if err != nil {
		return err
	}
	return u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(shipmentID), func(ctx context.Context, tx repository.Tx) error {
		ok, uerr := u.txns.UpdateStatusIf(ctx, tx, escrowIn.ID, []model.TransactionStatus{model.TransactionStatusHeld}, model.TransactionStatusDisputed)
		if uerr != nil {
			return uerr
		}
		if !ok {
			return domain.ErrStateConflict
		}
		now := time.Now()
		hold := &model.PaymentTransaction{
			ID:             uuid.NewString(),
			ShipmentID:     escrowIn.ShipmentID,
			PayerID:        "platform",
			PayeeID:        "platform",
			Amount:         escrowIn.Amount,
			Currency:       escrowIn.Currency,
			Kind:           model.TransactionKindDisputeHold,
			Status:         model.TransactionStatusComplete,
			EscrowWalletID: escrowIn.EscrowWalletID,
			DisputeID:      &disputeID,
			CreatedAt:      now,
			UpdatedAt:      now,
			ProcessedAt:    &now,
		}
		return u.txns.Save(ctx, tx, hold)
	})
}

func (u *escrowUC) RefundEscrow(ctx context.Context, shipmentID string, amount int64, reason, actorID string) (*model.PaymentTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	escrowIn, err := u.txns.FindByShipmentAndKind(ctx, nil, shipmentID, model.TransactionKindEscrowIn)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no escrow for shipment %s: %w", shipmentID, domain.ErrStateConflict)
	}
	if err != nil {
		return nil, err
	}
	available, err := u.AvailableForRefund(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if amount > available {
		return nil, domain.ErrAmountExceedsAvailable
	}

	settled := escrowIn.Status == model.TransactionStatusSettled
	kind := model.TransactionKindRefund
	if settled {
		kind = model.TransactionKindChargeback
	}

	var refund *model.PaymentTransaction
	err = u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(shipmentID), func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		r := reason
		refund = &model.PaymentTransaction{
			ID:             uuid.NewString(),
			ShipmentID:     escrowIn.ShipmentID,
			PayerID:        "platform",
			PayeeID:        escrowIn.PayerID, // money returns to the shipper
			Amount:         amount,
			Currency:       escrowIn.Currency,
			Kind:           kind,
			Status:         model.TransactionStatusPending,
			EscrowWalletID: escrowIn.EscrowWalletID,
			RefundReason:   &r,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return u.txns.Save(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}

	providerRef := ""
	if escrowIn.ProviderRef != nil {
		providerRef = *escrowIn.ProviderRef
	}
	if err := u.txns.UpdateStatus(ctx, nil, refund.ID, model.TransactionStatusProcessing, nil, nil); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, u.gwTimeout)
	res, gerr := u.gateway.Refund(cctx, adapter.RefundCall{
		TransactionID: refund.ID,
		ProviderRef:   providerRef,
		Amount:        amount,
		Reason:        reason,
	})
	cancel()
	if gerr != nil {
		if isTimeout(gerr) {
			metrics.IncGatewayError("timeout")
			return refund, fmt.Errorf("refund %s: %w", refund.ID, domain.ErrGatewayTimeout)
		}
		metrics.IncGatewayError("unavailable")
		_, _ = u.txns.UpdateStatusIf(ctx, nil, refund.ID, []model.TransactionStatus{model.TransactionStatusProcessing}, model.TransactionStatusFailed)
		return nil, fmt.Errorf("refund %s: %w", refund.ID, domain.ErrGatewayUnavailable)
	}
	if err := u.txns.SetProviderResponse(ctx, nil, refund.ID, &res.ProviderTxnID, res.Raw); err != nil {
		return nil, err
	}

	err = u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(shipmentID), func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		ok, uerr := u.txns.UpdateStatusIf(ctx, tx, refund.ID, []model.TransactionStatus{model.TransactionStatusProcessing}, model.TransactionStatusComplete)
		if uerr != nil {
			return uerr
		}
		if !ok {
			return domain.ErrStateConflict
		}
		if settled {
			// clawback from the payee wallet; escrow funds already paid out
			payeeWallet, werr := u.wallets.FindActiveByOwner(ctx, tx, escrowIn.PayeeID)
			if werr != nil {
				return werr
			}
			if berr := u.wallets.AdjustBalance(ctx, tx, payeeWallet.ID, -amount); berr != nil {
				return berr
			}
		} else if berr := u.wallets.AdjustBalance(ctx, tx, *escrowIn.EscrowWalletID, -amount); berr != nil {
			return berr
		}
		if amount == available {
			// fully refunded
			from := []model.TransactionStatus{model.TransactionStatusHeld, model.TransactionStatusDisputed, model.TransactionStatusSettled}
			if _, uerr := u.txns.UpdateStatusIf(ctx, tx, escrowIn.ID, from, model.TransactionStatusRefunded); uerr != nil {
				return uerr
			}
		}
		refund.Status = model.TransactionStatusComplete
		refund.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if amount == available {
		u.maybeRefundCommission(ctx, shipmentID)
	}
	metrics.IncRefund("completed")
	u.audit.Log(ctx, refund.ID, "escrow.refunded", actorID, model.ActorTypeAdmin, txnSnapshot(escrowIn), txnSnapshot(refund))
	return refund, nil
}

func (u *escrowUC) AvailableForRefund(ctx context.Context, shipmentID string) (int64, error) {
	list, err := u.txns.ListByShipment(ctx, nil, shipmentID)
	if err != nil {
		return 0, err
	}
	var escrowIn *model.PaymentTransaction
	var refunded int64
	for _, t := range list {
		switch t.Kind {
		case model.TransactionKindEscrowIn:
			escrowIn = t
		case model.TransactionKindRefund, model.TransactionKindChargeback:
			// in-flight refunds count against availability
			if t.Status != model.TransactionStatusFailed && t.Status != model.TransactionStatusCancelled {
				refunded += t.Amount
			}
		}
	}
	if escrowIn == nil {
		return 0, domain.ErrNotFound
	}
	switch escrowIn.Status {
	case model.TransactionStatusHeld, model.TransactionStatusDisputed, model.TransactionStatusSettled:
		return escrowIn.Amount - refunded, nil
	case model.TransactionStatusRefunded:
		return 0, nil
	default:
		return 0, nil
	}
}

// submitCharge moves t to processing and submits it to the gateway.
// On success the provider reference is recorded and t mutated in place.
func (u *escrowUC) submitCharge(ctx context.Context, t *model.PaymentTransaction) error {
	if err := u.txns.UpdateStatus(ctx, nil, t.ID, model.TransactionStatusProcessing, nil, nil); err != nil {
		return err
	}
	t.Status = model.TransactionStatusProcessing

	cctx, cancel := context.WithTimeout(ctx, u.gwTimeout)
	defer cancel()
	res, err := u.gateway.Charge(cctx, adapter.ChargeRequest{
		TransactionID: t.ID,
		Amount:        t.Amount,
		Currency:      t.Currency,
		PayerRef:      t.PayerID,
		PayeeRef:      t.PayeeID,
		Description:   string(t.Kind),
	})
	if err != nil {
		if isTimeout(err) {
			metrics.IncGatewayError("timeout")
			return fmt.Errorf("charge %s: %w", t.ID, domain.ErrGatewayTimeout)
		}
		metrics.IncGatewayError("unavailable")
		return fmt.Errorf("charge %s: %w", t.ID, domain.ErrGatewayUnavailable)
	}
	if err := u.txns.SetProviderResponse(ctx, nil, t.ID, &res.ProviderTxnID, res.Raw); err != nil {
		return err
	}
	t.ProviderRef = &res.ProviderTxnID
	return nil
}

// failPair marks the escrow-in failed and cancels the unsubmitted commission leg.
func (u *escrowUC) failPair(ctx context.Context, escrowInID, commissionID string) {
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		live := []model.TransactionStatus{model.TransactionStatusPending, model.TransactionStatusProcessing}
		if _, uerr := u.txns.UpdateStatusIf(ctx, tx, escrowInID, live, model.TransactionStatusFailed); uerr != nil {
			return uerr
		}
		_, uerr := u.txns.UpdateStatusIf(ctx, tx, commissionID, live, model.TransactionStatusCancelled)
		return uerr
	})
	if err != nil {
		u.log.Error().Err(err).Str("txn_id", escrowInID).Msg("failed to roll back escrow pair")
	}
}

// reverseHeldEscrow refunds a held escrow-in at the provider and unwinds the
// wallet credit after the commission leg failed.
func (u *escrowUC) reverseHeldEscrow(ctx context.Context, escrowIn, commTxn *model.PaymentTransaction) error {
	providerRef := ""
	if escrowIn.ProviderRef != nil {
		providerRef = *escrowIn.ProviderRef
	}
	cctx, cancel := context.WithTimeout(ctx, u.gwTimeout)
	_, gerr := u.gateway.Refund(cctx, adapter.RefundCall{
		TransactionID: escrowIn.ID,
		ProviderRef:   providerRef,
		Amount:        escrowIn.Amount,
		Reason:        "commission leg failed",
	})
	cancel()
	if gerr != nil {
		return fmt.Errorf("reverse escrow %s: %w", escrowIn.ID, gerr)
	}
	return u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(*escrowIn.ShipmentID), func(ctx context.Context, tx repository.Tx) error {
		ok, uerr := u.txns.UpdateStatusIf(ctx, tx, escrowIn.ID, []model.TransactionStatus{model.TransactionStatusHeld}, model.TransactionStatusFailed)
		if uerr != nil {
			return uerr
		}
		if ok {
			if berr := u.wallets.AdjustBalance(ctx, tx, *escrowIn.EscrowWalletID, -escrowIn.Amount); berr != nil {
				return berr
			}
		}
		_, uerr = u.txns.UpdateStatusIf(ctx, tx, commTxn.ID, []model.TransactionStatus{model.TransactionStatusPending, model.TransactionStatusProcessing}, model.TransactionStatusFailed)
		return uerr
	})
}

// maybeRefundCommission reverses the commission leg after a full refund when
// commission.refundable is configured on. Best-effort: commission is
// non-refundable by default and a failure here never unwinds the net refund.
func (u *escrowUC) maybeRefundCommission(ctx context.Context, shipmentID string) {
	cfg, err := u.configs.Get(ctx, model.ConfigKeyCommissionRefundable)
	if err != nil || cfg.Value != "true" {
		return
	}
	commTxn, err := u.txns.FindByShipmentAndKind(ctx, nil, shipmentID, model.TransactionKindCommission)
	if err != nil || commTxn.Status != model.TransactionStatusComplete {
		return
	}
	providerRef := ""
	if commTxn.ProviderRef != nil {
		providerRef = *commTxn.ProviderRef
	}
	cctx, cancel := context.WithTimeout(ctx, u.gwTimeout)
	_, gerr := u.gateway.Refund(cctx, adapter.RefundCall{
		TransactionID: commTxn.ID,
		ProviderRef:   providerRef,
		Amount:        commTxn.Amount,
		Reason:        "full shipment refund",
	})
	cancel()
	if gerr != nil {
		u.log.Warn().Err(gerr).Str("shipment_id", shipmentID).Msg("commission reversal failed")
		return
	}
	err = u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(shipmentID), func(ctx context.Context, tx repository.Tx) error {
		ok, uerr := u.txns.UpdateStatusIf(ctx, tx, commTxn.ID, []model.TransactionStatus{model.TransactionStatusComplete}, model.TransactionStatusRefunded)
		if uerr != nil {
			return uerr
		}
		if !ok {
			return nil
		}
		commWallet, werr := u.wallets.FindByOwnerAndKind(ctx, tx, nil, model.WalletKindPlatformCommission)
		if werr != nil {
			return werr
		}
		return u.wallets.AdjustBalance(ctx, tx, commWallet.ID, -commTxn.Amount)
	})
	if err != nil {
		u.log.Warn().Err(err).Str("shipment_id", shipmentID).Msg("commission reversal ledger update failed")
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrGatewayTimeout)
}
