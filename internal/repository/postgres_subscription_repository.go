package repository

import (
	"context"
	"database/sql"
	"errors"

	"plan-gate-server/internal/domain"
)

// PostgresSubscriptionRepository implements domain.SubscriptionRepository with database/sql
type PostgresSubscriptionRepository struct {
	db     *sql.DB
	logger domain.Logger
}

// NewPostgresSubscriptionRepository creates a ledger repository backed by Postgres
func NewPostgresSubscriptionRepository(db *sql.DB, logger domain.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db, logger: logger}
}

func (r *PostgresSubscriptionRepository) LatestForUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	const q = `SELECT id, user_id, stripe_customer_id, plan, "interval", status, created_at
		FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`

	var (
		sub                  domain.Subscription
		user, customer, plan sql.NullString
		interval, status     sql.NullString
		created              sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&sub.ID, &user, &customer, &plan, &interval, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translatePgError("failed to get latest subscription", subscriptionsTable, "", err)
	}

	sub.UserID = user.String
	sub.CustomerID = customer.String
	sub.Plan = domain.NormalizePlan(plan.String)
	sub.Status = status.String
	if i, ok := domain.ParseInterval(interval.String); ok {
		sub.Interval = i
	}
	if created.Valid {
		sub.CreatedAt = created.Time.UTC()
	}
	return &sub, nil
}

func (r *PostgresSubscriptionRepository) LatestCustomerIDForUser(ctx context.Context, userID string) (string, error) {
	const q = `SELECT stripe_customer_id FROM subscriptions
		WHERE user_id = $1 AND stripe_customer_id IS NOT NULL ORDER BY created_at DESC LIMIT 1`
	return r.scanString(ctx, q, userID, "failed to get ledger customer", "stripe_customer_id")
}

func (r *PostgresSubscriptionRepository) UserIDByCustomer(ctx context.Context, customerID string) (string, error) {
	const q = `SELECT user_id::text FROM subscriptions
		WHERE stripe_customer_id = $1 AND user_id IS NOT NULL ORDER BY created_at DESC LIMIT 1`
	return r.scanString(ctx, q, customerID, "failed to find ledger user", "user_id")
}

// Upsert keeps an existing user_id when the incoming row carries none.
func (r *PostgresSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	const q = `INSERT INTO subscriptions (id, user_id, stripe_customer_id, plan, "interval", status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			user_id = COALESCE(EXCLUDED.user_id, subscriptions.user_id),
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			plan = EXCLUDED.plan,
			"interval" = EXCLUDED."interval",
			status = EXCLUDED.status`

	var userID interface{}
	if sub.UserID != "" {
		userID = sub.UserID
	}
	_, err := r.db.ExecContext(ctx, q, sub.ID, userID, sub.CustomerID, string(sub.Plan), string(sub.Interval), sub.Status)
	if err != nil {
		return translatePgError("failed to upsert subscription", subscriptionsTable, "", err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) scanString(ctx context.Context, q, arg, op, column string) (string, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", translatePgError(op, subscriptionsTable, column, err)
	}
	return value.String, nil
}
