package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"

	"plan-gate-server/internal/domain"
)

const profilesTable = "profiles"

// SupabaseProfileRepository implements domain.ProfileRepository over PostgREST
type SupabaseProfileRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewSupabaseProfileRepository creates a new profile repository
func NewSupabaseProfileRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseProfileRepository {
	return &SupabaseProfileRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *SupabaseProfileRepository) client() (*postgrest.QueryBuilder, error) {
	db := r.supabaseClient.DB()
	if db == nil {
		return nil, domain.ErrDatastoreNotConfigured
	}
	return db.From(profilesTable), nil
}

// selectOne runs a single-row lookup and returns the first row, or nil.
func (r *SupabaseProfileRepository) selectOne(op, columns, filterColumn, value, driftColumn string) (map[string]interface{}, error) {
	q, err := r.client()
	if err != nil {
		return nil, err
	}
	data, _, err := q.Select(columns, "", false).
		Eq(filterColumn, value).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, translateError(op, profilesTable, driftColumn, err)
	}
	rows, err := decodeRows(data)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// CustomerID returns the cached billing customer id for the user
func (r *SupabaseProfileRepository) CustomerID(_ context.Context, userID string) (string, error) {
	row, err := r.selectOne("failed to get profile customer", "stripe_customer_id", "id", userID, "stripe_customer_id")
	if err != nil || row == nil {
		return "", err
	}
	return getString(row, "stripe_customer_id"), nil
}

// UserIDByCustomer finds the profile linked to a billing customer
func (r *SupabaseProfileRepository) UserIDByCustomer(_ context.Context, customerID string) (string, error) {
	row, err := r.selectOne("failed to find profile by customer", "id", "stripe_customer_id", customerID, "stripe_customer_id")
	if err != nil || row == nil {
		return "", err
	}
	return getString(row, "id"), nil
}

// UserIDByEmail finds the profile with the given email
func (r *SupabaseProfileRepository) UserIDByEmail(_ context.Context, email string) (string, error) {
	row, err := r.selectOne("failed to find profile by email", "id", "email", email, "email")
	if err != nil || row == nil {
		return "", err
	}
	return getString(row, "id"), nil
}

// SetCustomerID stores the billing customer id on the profile
func (r *SupabaseProfileRepository) SetCustomerID(_ context.Context, userID, customerID string, at time.Time) error {
	q, err := r.client()
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"stripe_customer_id": customerID,
		"updated_at":         formatTimestamp(at),
	}
	if _, _, err := q.Update(data, "minimal", "").Eq("id", userID).Execute(); err != nil {
		return translateError("failed to set profile customer", profilesTable, "stripe_customer_id", err)
	}
	return nil
}

// MirrorPlan copies the resolved plan state onto the profile
func (r *SupabaseProfileRepository) MirrorPlan(_ context.Context, userID string, mirror domain.PlanMirror) error {
	q, err := r.client()
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"stripe_customer_id": mirror.CustomerID,
		"plan":               string(mirror.Plan),
		"plan_status":        mirror.Status,
		"plan_interval":      string(mirror.Interval),
		"updated_at":         formatTimestamp(mirror.UpdatedAt),
	}
	if _, _, err := q.Update(data, "minimal", "").Eq("id", userID).Execute(); err != nil {
		return translateError("failed to mirror plan", profilesTable, "plan", err)
	}
	return nil
}

// LastRunAt reads a cooldown column
func (r *SupabaseProfileRepository) LastRunAt(_ context.Context, userID, column string) (*time.Time, bool, error) {
	row, err := r.selectOne("failed to read cooldown", "id,"+column, "id", userID, column)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}
	return getTime(row, column), true, nil
}

// StampLastRun performs a compare-and-set on the cooldown column. The row is
// only updated while it still holds prev, so two concurrent requests cannot
// both claim the same window.
func (r *SupabaseProfileRepository) StampLastRun(_ context.Context, userID, column string, prev *time.Time, at time.Time) (bool, error) {
	if prev != nil && !at.After(*prev) {
		return false, nil
	}
	q, err := r.client()
	if err != nil {
		return false, err
	}

	filter := q.Update(map[string]interface{}{column: formatTimestamp(at)}, "representation", "").
		Eq("id", userID)
	if prev == nil {
		filter = filter.Is(column, "null")
	} else {
		filter = filter.Eq(column, formatTimestamp(*prev))
	}

	data, _, err := filter.Execute()
	if err != nil {
		return false, translateError(fmt.Sprintf("failed to stamp %s", column), profilesTable, column, err)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
