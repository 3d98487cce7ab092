package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, order_id, payment_key, amount, status, type, method, paid_at, canceled_at, cancel_reason, fail_reason, plan, billing_cycle, customer_key, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, order_id, payment_key, amount, status, type, method, paid_at, canceled_at, cancel_reason, fail_reason, plan, billing_cycle, customer_key, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
) ON CONFLICT (id) DO UPDATE SET
  payment_key=$4, status=$6, method=$8, paid_at=$9, canceled_at=$10, cancel_reason=$11, fail_reason=$12, updated_at=$17;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.OrderID, p.PaymentKey, p.Amount, p.Status, p.Type, p.Method, p.PaidAt, p.CanceledAt, p.CancelReason, p.FailReason, p.Plan, p.BillingCycle, p.CustomerKey, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

// FindByOrderID locks the row FOR UPDATE when running inside a transaction,
// which is what the non-racy Complete path relies on.
func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, orderID)
}

func (r *paymentRepo) FindByPaymentKey(ctx context.Context, tx repository.Tx, paymentKey string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_key=$1 LIMIT 1;`
	return r.queryOne(ctx, tx, q, paymentKey)
}

// UpdateStatusIfPending atomically applies PENDING -> status. Rows affected
// decides the race: exactly one of N concurrent callers sees true.
func (r *paymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, orderID string, status model.PaymentStatus, paymentKey, method *string, paidAt *time.Time) (bool, error) {
	const q = `
    UPDATE payments
       SET status = $2,
           payment_key = COALESCE($3, payment_key),
           method = COALESCE($4, method),
           paid_at = COALESCE($5, paid_at),
           updated_at = NOW()
     WHERE order_id = $1
       AND status = 'PENDING';`

	cmd, err := execSQL(ctx, r.pool, tx, q, orderID, string(status), paymentKey, method, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, reason *string, at time.Time) error {
	var q string
	switch status {
	case model.PaymentStatusCanceled:
		q = `UPDATE payments SET status=$2, cancel_reason=$3, canceled_at=$4, updated_at=$4 WHERE id=$1;`
	case model.PaymentStatusFailed:
		q = `UPDATE payments SET status=$2, fail_reason=$3, updated_at=$4 WHERE id=$1;`
	default:
		q = `UPDATE payments SET status=$2, updated_at=$4 WHERE id=$1;`
	}
	_, err := execSQL(ctx, r.pool, tx, q, id, string(status), reason, at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
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
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *paymentRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Payment, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	p := &model.Payment{}
	var status, ptype, plan, cycle string
	if err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &p.PaymentKey, &p.Amount, &status, &ptype, &p.Method, &p.PaidAt, &p.CanceledAt, &p.CancelReason, &p.FailReason, &plan, &cycle, &p.CustomerKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.PaymentStatus(status)
	p.Type = model.PaymentType(ptype)
	p.Plan = model.Plan(plan)
	p.BillingCycle = model.BillingCycle(cycle)
	return p, nil
}

func scanPayment(rows pgx.Rows) (*model.Payment, error) {
	p := &model.Payment{}
	var status, ptype, plan, cycle string
	if err := rows.Scan(&p.ID, &p.UserID, &p.OrderID, &p.PaymentKey, &p.Amount, &status, &ptype, &p.Method, &p.PaidAt, &p.CanceledAt, &p.CancelReason, &p.FailReason, &plan, &cycle, &p.CustomerKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.PaymentStatus(status)
	p.Type = model.PaymentType(ptype)
	p.Plan = model.Plan(plan)
	p.BillingCycle = model.BillingCycle(cycle)
	return p, nil
}
