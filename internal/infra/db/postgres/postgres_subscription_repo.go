package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/repository"
	"studycard-subscription/internal/infra/security"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

// subscriptionRepo stores billing keys encrypted. The billing_key column
// holds AES-GCM ciphertext; billing_key_hash holds a keyed digest for
// equality lookups, since ciphertexts are not deterministic.
type subscriptionRepo struct {
	pool   *pgxpool.Pool
	cipher *security.BillingKeyCipher
}

func NewSubscriptionRepo(pool *pgxpool.Pool, cipher *security.BillingKeyCipher) *subscriptionRepo {
	return &subscriptionRepo{pool: pool, cipher: cipher}
}

const subscriptionColumns = `id, user_id, customer_key, billing_key, plan, status, billing_cycle, start_date, end_date, auto_renew, cancel_reason, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, customer_key, billing_key, billing_key_hash, plan, status, billing_cycle, start_date, end_date, auto_renew, cancel_reason, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  billing_key=$4, billing_key_hash=$5, status=$7, start_date=$9, end_date=$10, auto_renew=$11, cancel_reason=$12, updated_at=$14;`

	var encKey, keyHash *string
	if s.BillingKey != nil {
		enc, err := r.cipher.Encrypt(*s.BillingKey)
		if err != nil {
			return domain.ErrOperationFailed
		}
		hash := r.cipher.Digest(*s.BillingKey)
		encKey, keyHash = &enc, &hash
	}

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.CustomerKey, encKey, keyHash, s.Plan, s.Status, s.BillingCycle, s.StartDate, s.EndDate, s.AutoRenew, s.CancelReason, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrActiveSubscriptionExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='ACTIVE' AND end_date > NOW()
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) FindByBillingKey(ctx context.Context, tx repository.Tx, billingKey string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE billing_key_hash=$1 LIMIT 1;`
	return r.queryOne(ctx, tx, q, r.cipher.Digest(billingKey))
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

// FindRenewable mirrors model.Subscription.RenewableWithin: ACTIVE, MONTHLY,
// billing key on file, auto-renewal enabled, end_date inside [now, horizon].
func (r *subscriptionRepo) FindRenewable(ctx context.Context, tx repository.Tx, now, horizon time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='ACTIVE'
   AND billing_cycle='MONTHLY'
   AND billing_key IS NOT NULL
   AND auto_renew
   AND end_date >= $1
   AND end_date <= $2
 ORDER BY end_date ASC;`
	return r.queryMany(ctx, tx, q, now, horizon)
}

func (r *subscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='ACTIVE' AND end_date < $1
 ORDER BY end_date ASC;`
	return r.queryMany(ctx, tx, q, now)
}

// ExpireIfActive is the expiry sweep's compare-and-set. The status guard keeps
// two sweeps that listed the same row from both claiming the transition.
func (r *subscriptionRepo) ExpireIfActive(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	const q = `UPDATE subscriptions SET status='EXPIRED', updated_at=$2 WHERE id=$1 AND status='ACTIVE';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return false, err
		default:
			return false, domain.ErrOperationFailed
		}
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	var status, plan, cycle string
	if err := row.Scan(&s.ID, &s.UserID, &s.CustomerKey, &s.BillingKey, &plan, &status, &cycle, &s.StartDate, &s.EndDate, &s.AutoRenew, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	s.Plan = model.Plan(plan)
	s.BillingCycle = model.BillingCycle(cycle)
	if err := r.decryptBillingKey(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepo) decryptBillingKey(s *model.Subscription) error {
	if s.BillingKey == nil {
		return nil
	}
	plain, err := r.cipher.Decrypt(*s.BillingKey)
	if err != nil {
		return domain.ErrReadDatabaseRow
	}
	s.BillingKey = &plain
	return nil
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s := &model.Subscription{}
		var status, plan, cycle string
		if err := rows.Scan(&s.ID, &s.UserID, &s.CustomerKey, &s.BillingKey, &plan, &status, &cycle, &s.StartDate, &s.EndDate, &s.AutoRenew, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		s.Status = model.SubscriptionStatus(status)
		s.Plan = model.Plan(plan)
		s.BillingCycle = model.BillingCycle(cycle)
		if err := r.decryptBillingKey(s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
