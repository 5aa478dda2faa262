package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plan-gate-server/internal/domain"
)

// PostgresProfileRepository implements domain.ProfileRepository with database/sql
type PostgresProfileRepository struct {
	db     *sql.DB
	logger domain.Logger
}

// NewPostgresProfileRepository creates a profile repository backed by Postgres
func NewPostgresProfileRepository(db *sql.DB, logger domain.Logger) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db, logger: logger}
}

func (r *PostgresProfileRepository) CustomerID(ctx context.Context, userID string) (string, error) {
	return r.scanString(ctx, `SELECT stripe_customer_id FROM profiles WHERE id = $1`, userID, "stripe_customer_id")
}

func (r *PostgresProfileRepository) UserIDByCustomer(ctx context.Context, customerID string) (string, error) {
	return r.scanString(ctx, `SELECT id::text FROM profiles WHERE stripe_customer_id = $1 LIMIT 1`, customerID, "stripe_customer_id")
}

func (r *PostgresProfileRepository) UserIDByEmail(ctx context.Context, email string) (string, error) {
	return r.scanString(ctx, `SELECT id::text FROM profiles WHERE email = $1 LIMIT 1`, email, "email")
}

func (r *PostgresProfileRepository) SetCustomerID(ctx context.Context, userID, customerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET stripe_customer_id = $2, updated_at = $3 WHERE id = $1`,
		userID, customerID, at.UTC())
	return translatePgError("failed to set profile customer", profilesTable, "stripe_customer_id", err)
}

func (r *PostgresProfileRepository) MirrorPlan(ctx context.Context, userID string, m domain.PlanMirror) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET stripe_customer_id = $2, plan = $3, plan_status = $4, plan_interval = $5, updated_at = $6 WHERE id = $1`,
		userID, m.CustomerID, string(m.Plan), m.Status, string(m.Interval), m.UpdatedAt.UTC())
	return translatePgError("failed to mirror plan", profilesTable, "plan", err)
}

func (r *PostgresProfileRepository) LastRunAt(ctx context.Context, userID, column string) (*time.Time, bool, error) {
	col, err := cooldownColumn(column)
	if err != nil {
		return nil, false, err
	}

	var last sql.NullTime
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, col), userID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translatePgError("failed to read cooldown", profilesTable, col, err)
	}
	if !last.Valid {
		return nil, true, nil
	}
	t := last.Time.UTC()
	return &t, true, nil
}

func (r *PostgresProfileRepository) StampLastRun(ctx context.Context, userID, column string, prev *time.Time, at time.Time) (bool, error) {
	col, err := cooldownColumn(column)
	if err != nil {
		return false, err
	}
	if prev != nil && !at.After(*prev) {
		return false, nil
	}

	var res sql.Result
	if prev == nil {
		res, err = r.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE profiles SET %[1]s = $2 WHERE id = $1 AND %[1]s IS NULL`, col),
			userID, at.UTC())
	} else {
		res, err = r.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE profiles SET %[1]s = $2 WHERE id = $1 AND %[1]s = $3`, col),
			userID, at.UTC(), prev.UTC())
	}
	if err != nil {
		return false, translatePgError("failed to stamp cooldown", profilesTable, col, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresProfileRepository) scanString(ctx context.Context, q, arg, column string) (string, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", translatePgError("profile lookup failed", profilesTable, column, err)
	}
	return value.String, nil
}
