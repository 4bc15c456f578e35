package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
)

var _ repository.ErrorLogRepository = (*errorLogRepo)(nil)

// errorLogRepo is append-only; rows are never updated or deleted by the
// application.
type errorLogRepo struct{ pool *pgxpool.Pool }

func NewErrorLogRepo(pool *pgxpool.Pool) *errorLogRepo {
	return &errorLogRepo{pool: pool}
}

func (r *errorLogRepo) Append(ctx context.Context, tx repository.Tx, e *model.ErrorLog) error {
	const q = `
INSERT INTO error_logs (id, level, source, message, details, user_id, payment_id, stack, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.Level, e.Source, e.Message, e.Details, e.UserID, e.PaymentID, e.Stack, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *errorLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.ErrorLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, level, source, message, details, user_id, payment_id, stack, created_at
 FROM error_logs ORDER BY id DESC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.ErrorLog
	for rows.Next() {
		e := new(model.ErrorLog)
		if err := rows.Scan(&e.ID, &e.Level, &e.Source, &e.Message, &e.Details, &e.UserID, &e.PaymentID, &e.Stack, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}
