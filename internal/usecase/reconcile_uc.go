// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/adapter"
	"logistics-payment-engine/internal/domain/ports/repository"
	"logistics-payment-engine/internal/infra/metrics"
)

// Compile-time check
var _ Reconciler = (*reconcileUC)(nil)

// Reconciler resolves transactions stuck in pending or processing after a
// crash or gateway timeout by polling the provider for the real outcome.
type Reconciler interface {
	// ReconcileStale finds transactions in flight for longer than olderThan
	// and reconciles each. Returns how many were resolved either way.
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)

	// ReconcileTransaction polls the provider for one transaction and applies
	// the outcome. Unresolved transactions past failAfter are marked failed.
	ReconcileTransaction(ctx context.Context, txnID string) error
}

// inFlightStatuses are the non-terminal submission states the reconciler owns.
var inFlightStatuses = []model.TransactionStatus{
	model.TransactionStatusPending,
	model.TransactionStatusProcessing,
}

type reconcileUC struct {
	txns      repository.TransactionRepository
	wallets   repository.WalletRepository
	subs      repository.SubscriptionRepository
	refunds   repository.RefundRepository
	gateway   adapter.PaymentGateway
	tm        repository.TransactionManager
	audit     *AuditLogger
	currency  string
	failAfter time.Duration
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	txns repository.TransactionRepository,
	wallets repository.WalletRepository,
	subs repository.SubscriptionRepository,
	refunds repository.RefundRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	audit *AuditLogger,
	failAfter time.Duration,
	logger *zerolog.Logger,
) *reconcileUC {
	if failAfter <= 0 {
		failAfter = 24 * time.Hour
	}
	return &reconcileUC{
		txns:      txns,
		wallets:   wallets,
		subs:      subs,
		refunds:   refunds,
		gateway:   gateway,
		tm:        tm,
		audit:     audit,
		currency:  "INR",
		failAfter: failAfter,
		log:       logger,
	}
}

func (u *reconcileUC) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	stale, err := u.txns.ListStaleInFlight(ctx, nil, cutoff, limit)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, t := range stale {
		if err := u.ReconcileTransaction(ctx, t.ID); err != nil {
			u.log.Warn().Err(err).Str("txn_id", t.ID).Str("kind", string(t.Kind)).Msg("reconciliation attempt failed")
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (u *reconcileUC) ReconcileTransaction(ctx context.Context, txnID string) error {
	txn, err := u.txns.FindByID(ctx, nil, txnID)
	if err != nil {
		return err
	}
	if txn.Status != model.TransactionStatusProcessing && txn.Status != model.TransactionStatusPending {
		// already resolved by another path
		return nil
	}

	res, gerr := u.gateway.Status(ctx, txn.ID)
	if gerr != nil {
		if time.Since(txn.UpdatedAt) > u.failAfter {
			return u.markFailed(ctx, txn, "unresolvable past deadline")
		}
		return fmt.Errorf("poll provider for %s: %w", txn.ID, gerr)
	}

	switch {
	case providerSucceeded(res.ProviderStatus):
		return u.applySuccess(ctx, txn, res)
	case providerFailed(res.ProviderStatus):
		return u.markFailed(ctx, txn, "provider reported "+res.ProviderStatus)
	default:
		// still in flight at the provider
		if time.Since(txn.UpdatedAt) > u.failAfter {
			return u.markFailed(ctx, txn, "unresolved past deadline")
		}
		return nil
	}
}

func providerSucceeded(s string) bool {
	switch strings.ToLower(s) {
	case "captured", "paid", "refunded", "processed", "success":
		return true
	}
	return false
}

func providerFailed(s string) bool {
	switch strings.ToLower(s) {
	case "failed", "cancelled", "voided", "declined":
		return true
	}
	return false
}

func (u *reconcileUC) applySuccess(ctx context.Context, txn *model.PaymentTransaction, res adapter.Result) error {
	if err := u.txns.SetProviderResponse(ctx, nil, txn.ID, &res.ProviderTxnID, res.Raw); err != nil {
		return err
	}

	switch txn.Kind {
	case model.TransactionKindEscrowIn:
		err := u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(*txn.ShipmentID), func(ctx context.Context, tx repository.Tx) error {
			ok, uerr := u.txns.UpdateStatusIf(ctx, tx, txn.ID, inFlightStatuses, model.TransactionStatusHeld)
			if uerr != nil || !ok {
				return uerr
			}
			return u.wallets.AdjustBalance(ctx, tx, *txn.EscrowWalletID, txn.Amount)
		})
		if err != nil {
			return err
		}
		metrics.IncEscrow("held")
		metrics.AddEscrowVolume(txn.Currency, txn.Amount)

	case model.TransactionKindCommission, model.TransactionKindSubscription:
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			ok, uerr := u.txns.UpdateStatusIf(ctx, tx, txn.ID, inFlightStatuses, model.TransactionStatusComplete)
			if uerr != nil || !ok {
				return uerr
			}
			w, werr := u.wallets.GetOrCreate(ctx, tx, nil, model.WalletKindPlatformCommission, u.currency)
			if werr != nil {
				return werr
			}
			return u.wallets.AdjustBalance(ctx, tx, w.ID, txn.Amount)
		})
		if err != nil {
			return err
		}
		if txn.Kind == model.TransactionKindSubscription {
			if err := u.advanceSubscription(ctx, txn); err != nil {
				return err
			}
		}

	case model.TransactionKindRefund, model.TransactionKindChargeback:
		err := u.tm.WithLockedTx(ctx, pgx.TxOptions{}, shipmentLockKey(*txn.ShipmentID), func(ctx context.Context, tx repository.Tx) error {
			ok, uerr := u.txns.UpdateStatusIf(ctx, tx, txn.ID, inFlightStatuses, model.TransactionStatusComplete)
			if uerr != nil || !ok {
				return uerr
			}
			if txn.Kind == model.TransactionKindChargeback {
				payeeWallet, werr := u.wallets.FindActiveByOwner(ctx, tx, txn.PayeeID)
				if werr != nil {
					return werr
				}
				if berr := u.wallets.AdjustBalance(ctx, tx, payeeWallet.ID, -txn.Amount); berr != nil {
					return berr
				}
			} else if berr := u.wallets.AdjustBalance(ctx, tx, *txn.EscrowWalletID, -txn.Amount); berr != nil {
				return berr
			}
			return u.rollFullyRefundedEscrow(ctx, tx, *txn.ShipmentID)
		})
		if err != nil {
			return err
		}
		if err := u.finishRefundRequest(ctx, txn); err != nil {
			return err
		}
		metrics.IncRefund("completed")

	default:
		if _, err := u.txns.UpdateStatusIf(ctx, nil, txn.ID, inFlightStatuses, model.TransactionStatusComplete); err != nil {
			return err
		}
	}

	metrics.IncReconciled("resolved")
	u.audit.Log(ctx, txn.ID, "transaction.reconciled", "reconciler", model.ActorTypeSystem, nil, txnSnapshot(txn))
	return nil
}

// rollFullyRefundedEscrow moves the shipment's escrow-in to refunded once the
// completed refunds add up to the full held amount. Runs inside the caller's
// locked transaction.
func (u *reconcileUC) rollFullyRefundedEscrow(ctx context.Context, tx repository.Tx, shipmentID string) error {
	list, err := u.txns.ListByShipment(ctx, tx, shipmentID)
	if err != nil {
		return err
	}
	var escrowIn *model.PaymentTransaction
	var refunded int64
	for _, t := range list {
		switch t.Kind {
		case model.TransactionKindEscrowIn:
			escrowIn = t
		case model.TransactionKindRefund, model.TransactionKindChargeback:
			if t.Status != model.TransactionStatusFailed && t.Status != model.TransactionStatusCancelled {
				refunded += t.Amount
			}
		}
	}
	if escrowIn == nil || refunded < escrowIn.Amount {
		return nil
	}
	from := []model.TransactionStatus{model.TransactionStatusHeld, model.TransactionStatusDisputed, model.TransactionStatusSettled}
	_, err = u.txns.UpdateStatusIf(ctx, tx, escrowIn.ID, from, model.TransactionStatusRefunded)
	return err
}

// finishRefundRequest closes the approval that spawned a now-complete refund
// transaction. Refunds issued without a request have no linked row; that is
// not an error.
func (u *reconcileUC) finishRefundRequest(ctx context.Context, txn *model.PaymentTransaction) error {
	req, err := u.refunds.FindByTransaction(ctx, nil, txn.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return nil
	}
	old := refundSnapshot(req)
	now := time.Now()
	if req.AmountApproved == nil {
		amt := txn.Amount
		req.AmountApproved = &amt
	}
	req.Status = model.RefundStatusCompleted
	req.ProcessedAt = &now
	req.UpdatedAt = now
	if err := u.refunds.Save(ctx, nil, req); err != nil {
		return err
	}
	u.audit.Log(ctx, req.ID, "refund.completed", "reconciler", model.ActorTypeSystem, old, refundSnapshot(req))
	return nil
}

// reopenRefundRequest puts the approval back to pending after its refund
// transaction failed, so an admin can retry.
func (u *reconcileUC) reopenRefundRequest(ctx context.Context, txn *model.PaymentTransaction) error {
	req, err := u.refunds.FindByTransaction(ctx, nil, txn.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if req.Status.Terminal() || req.Status == model.RefundStatusPending {
		return nil
	}
	old := refundSnapshot(req)
	req.Status = model.RefundStatusPending
	req.TransactionID = nil
	req.UpdatedAt = time.Now()
	if err := u.refunds.Save(ctx, nil, req); err != nil {
		return err
	}
	u.audit.Log(ctx, req.ID, "refund.reopened", "reconciler", model.ActorTypeSystem, old, refundSnapshot(req))
	return nil
}

// advanceSubscription rolls the billing period forward after a late-confirmed
// renewal charge. PayerID of a subscription transaction is the fleet id.
func (u *reconcileUC) advanceSubscription(ctx context.Context, txn *model.PaymentTransaction) error {
	sub, err := u.subs.FindCurrentByFleet(ctx, nil, txn.PayerID)
	if err != nil {
		return err
	}
	return u.tm.WithLockedTx(ctx, pgx.TxOptions{}, subscriptionLockKey(sub.ID), func(ctx context.Context, tx repository.Tx) error {
		sub.CurrentPeriodStart = sub.CurrentPeriodEnd
		sub.CurrentPeriodEnd = sub.Cycle.Advance(sub.CurrentPeriodEnd)
		sub.NextBillingDate = sub.CurrentPeriodEnd
		sub.GracePeriodEnd = nil
		if sub.Status == model.SubscriptionStatusSuspended {
			sub.Status = model.SubscriptionStatusActive
		}
		sub.UpdatedAt = time.Now()
		return u.subs.Save(ctx, tx, sub)
	})
}

func (u *reconcileUC) markFailed(ctx context.Context, txn *model.PaymentTransaction, why string) error {
	ok, err := u.txns.UpdateStatusIf(ctx, nil, txn.ID, inFlightStatuses, model.TransactionStatusFailed)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStateConflict
	}
	switch txn.Kind {
	case model.TransactionKindEscrowIn:
		// an orphaned pair never charges the commission leg
		if txn.ShipmentID != nil {
			if comm, ferr := u.txns.FindByShipmentAndKind(ctx, nil, *txn.ShipmentID, model.TransactionKindCommission); ferr == nil {
				if _, uerr := u.txns.UpdateStatusIf(ctx, nil, comm.ID, inFlightStatuses, model.TransactionStatusCancelled); uerr != nil {
					return uerr
				}
			} else if !errors.Is(ferr, domain.ErrNotFound) {
				return ferr
			}
		}
	case model.TransactionKindRefund, model.TransactionKindChargeback:
		if rerr := u.reopenRefundRequest(ctx, txn); rerr != nil {
			return rerr
		}
	}
	metrics.IncReconciled("failed")
	u.log.Warn().Str("txn_id", txn.ID).Str("kind", string(txn.Kind)).Str("reason", why).Msg("transaction marked failed by reconciler")
	u.audit.Log(ctx, txn.ID, "transaction.failed", "reconciler", model.ActorTypeSystem, txnSnapshot(txn), map[string]interface{}{"reason": why})
	return nil
}
