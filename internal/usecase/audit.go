// File: internal/usecase/audit.go
package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
	"logistics-payment-engine/internal/infra/metrics"
)

// AuditLogger appends immutable audit entries. It never fails the calling
// operation: append errors go to the error log and a failure counter so they
// can be alerted on without rolling back the financial operation.
type AuditLogger struct {
	repo repository.AuditRepository
	log  *zerolog.Logger
}

func NewAuditLogger(repo repository.AuditRepository, logger *zerolog.Logger) *AuditLogger {
	return &AuditLogger{repo: repo, log: logger}
}

func (a *AuditLogger) Log(ctx context.Context, subjectID, action, actorID string, actorType model.ActorType, oldValues, newValues map[string]interface{}) {
	e := &model.AuditEntry{
		ID:        ulid.Make().String(),
		SubjectID: subjectID,
		Action:    action,
		ActorID:   actorID,
		ActorType: actorType,
		OldValues: oldValues,
		NewValues: newValues,
		CreatedAt: time.Now(),
	}
	if err := a.repo.Append(ctx, nil, e); err != nil {
		metrics.IncAuditFailure()
		a.log.Error().Err(err).Str("subject_id", subjectID).Str("action", action).Msg("audit append failed")
		return
	}
	metrics.IncAudit(action)
}

// txnSnapshot captures the audit-relevant fields of a transaction.
func txnSnapshot(t *model.PaymentTransaction) map[string]interface{} {
	if t == nil {
		return nil
	}
	m := map[string]interface{}{
		"id":     t.ID,
		"kind":   string(t.Kind),
		"status": string(t.Status),
		"amount": t.Amount,
		"payer":  t.PayerID,
		"payee":  t.PayeeID,
	}
	if t.ShipmentID != nil {
		m["shipment_id"] = *t.ShipmentID
	}
	if t.ProviderRef != nil {
		m["provider_ref"] = *t.ProviderRef
	}
	return m
}

func refundSnapshot(r *model.RefundRequest) map[string]interface{} {
	if r == nil {
		return nil
	}
	m := map[string]interface{}{
		"id":          r.ID,
		"shipment_id": r.ShipmentID,
		"type":        string(r.Type),
		"status":      string(r.Status),
		"requested":   r.AmountRequested,
	}
	if r.AmountApproved != nil {
		m["approved"] = *r.AmountApproved
	}
	if r.TransactionID != nil {
		m["transaction_id"] = *r.TransactionID
	}
	return m
}

func subscriptionSnapshot(s *model.FleetSubscription) map[string]interface{} {
	if s == nil {
		return nil
	}
	m := map[string]interface{}{
		"id":           s.ID,
		"fleet_id":     s.FleetID,
		"tier":         string(s.Tier),
		"status":       string(s.Status),
		"period_end":   s.CurrentPeriodEnd,
		"next_billing": s.NextBillingDate,
	}
	if s.GracePeriodEnd != nil {
		m["grace_period_end"] = *s.GracePeriodEnd
	}
	return m
}
