package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

// auditRepo only inserts and reads; the table carries no update path.
type auditRepo struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	const q = `
INSERT INTO audit_entries (id, subject_id, action, actor_id, actor_type, old_values, new_values, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.SubjectID, e.Action, e.ActorID, e.ActorType, e.OldValues, e.NewValues, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *auditRepo) ListBySubject(ctx context.Context, tx repository.Tx, subjectID string, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, subject_id, action, actor_id, actor_type, old_values, new_values, created_at FROM audit_entries WHERE subject_id=$1 ORDER BY id ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, subjectID, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.AuditEntry
	for rows.Next() {
		e := &model.AuditEntry{}
		if serr := rows.Scan(&e.ID, &e.SubjectID, &e.Action, &e.ActorID, &e.ActorType, &e.OldValues, &e.NewValues, &e.CreatedAt); serr != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}
