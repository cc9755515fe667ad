package repository

import (
	"context"

	"logistics-payment-engine/internal/domain/model"
)

// AuditRepository is an append-only sink. There are no update or delete
// operations.
type AuditRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditEntry) error
	ListBySubject(ctx context.Context, tx Tx, subjectID string, limit int) ([]*model.AuditEntry, error)
}
