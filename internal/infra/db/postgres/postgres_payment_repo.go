package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/model"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, gateway, amount, currency, status, razorpay_order_id, razorpay_payment_id, cashfree_order_id, failure_reason, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(
		&p.ID, &p.UserID, &p.Gateway, &p.Amount, &p.Currency, &p.Status,
		&p.RazorpayOrderID, &p.RazorpayPaymentID, &p.CashfreeOrderID,
		&p.FailureReason, &p.Metadata, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, gateway, amount, currency, status, razorpay_order_id, razorpay_payment_id, cashfree_order_id, failure_reason, metadata, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  status=$6, razorpay_payment_id=$8, failure_reason=$10, metadata=$11, updated_at=$13;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.Gateway, p.Amount, p.Currency, p.Status,
		p.RazorpayOrderID, p.RazorpayPaymentID, p.CashfreeOrderID,
		p.FailureReason, p.Metadata, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gateway model.Gateway, orderID string) (*model.Payment, error) {
	col := "razorpay_order_id"
	if gateway == model.GatewayCashfree {
		col = "cashfree_order_id"
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway=$1 AND ` + col + `=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, gateway, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// UpdateStatusIfPending atomically updates status only when the row is still
// PENDING, which keeps concurrent verify and webhook writes idempotent.
func (r *paymentRepo) UpdateStatusIfPending(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, gatewayPaymentID *string, failureReason *string,
) (bool, error) {
	const q = `
    UPDATE payments
       SET status = $2,
           razorpay_payment_id = COALESCE($3, razorpay_payment_id),
           failure_reason = COALESCE($4, failure_reason),
           updated_at = NOW()
     WHERE id = $1
       AND status = 'PENDING';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), gatewayPaymentID, failureReason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='PENDING' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p := new(model.Payment)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Gateway, &p.Amount, &p.Currency, &p.Status,
			&p.RazorpayOrderID, &p.RazorpayPaymentID, &p.CashfreeOrderID,
			&p.FailureReason, &p.Metadata, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}
