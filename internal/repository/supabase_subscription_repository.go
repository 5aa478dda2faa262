package repository

import (
	"context"
	"fmt"

	"github.com/supabase-community/postgrest-go"

	"plan-gate-server/internal/domain"
)

const (
	subscriptionsTable   = "subscriptions"
	subscriptionsColumns = "id,user_id,stripe_customer_id,plan,interval,status,created_at"
)

// SupabaseSubscriptionRepository implements domain.SubscriptionRepository over PostgREST
type SupabaseSubscriptionRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewSupabaseSubscriptionRepository creates a new ledger repository
func NewSupabaseSubscriptionRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseSubscriptionRepository {
	return &SupabaseSubscriptionRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *SupabaseSubscriptionRepository) client() (*postgrest.QueryBuilder, error) {
	db := r.supabaseClient.DB()
	if db == nil {
		return nil, domain.ErrDatastoreNotConfigured
	}
	return db.From(subscriptionsTable), nil
}

// LatestForUser returns the most recently created ledger row for the user
func (r *SupabaseSubscriptionRepository) LatestForUser(_ context.Context, userID string) (*domain.Subscription, error) {
	q, err := r.client()
	if err != nil {
		return nil, err
	}

	data, _, err := q.Select(subscriptionsColumns, "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, translateError("failed to get latest subscription", subscriptionsTable, "", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return mapToSubscription(rows[0]), nil
}

// LatestCustomerIDForUser returns the newest non-null customer id for the user
func (r *SupabaseSubscriptionRepository) LatestCustomerIDForUser(_ context.Context, userID string) (string, error) {
	q, err := r.client()
	if err != nil {
		return "", err
	}

	data, _, err := q.Select("stripe_customer_id", "", false).
		Eq("user_id", userID).
		Not("stripe_customer_id", "is", "null").
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return "", translateError("failed to get ledger customer", subscriptionsTable, "stripe_customer_id", err)
	}

	rows, err := decodeRows(data)
	if err != nil || len(rows) == 0 {
		return "", err
	}
	return getString(rows[0], "stripe_customer_id"), nil
}

// UserIDByCustomer returns the user linked to the customer on any ledger row
func (r *SupabaseSubscriptionRepository) UserIDByCustomer(_ context.Context, customerID string) (string, error) {
	q, err := r.client()
	if err != nil {
		return "", err
	}

	data, _, err := q.Select("user_id", "", false).
		Eq("stripe_customer_id", customerID).
		Not("user_id", "is", "null").
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return "", translateError("failed to find ledger user", subscriptionsTable, "user_id", err)
	}

	rows, err := decodeRows(data)
	if err != nil || len(rows) == 0 {
		return "", err
	}
	return getString(rows[0], "user_id"), nil
}

// Upsert writes the row keyed on the provider subscription id. An empty
// user id is omitted so a replay without correlation keeps the existing link.
func (r *SupabaseSubscriptionRepository) Upsert(_ context.Context, sub *domain.Subscription) error {
	q, err := r.client()
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"id":                 sub.ID,
		"stripe_customer_id": sub.CustomerID,
		"plan":               string(sub.Plan),
		"interval":           string(sub.Interval),
		"status":             sub.Status,
	}
	if sub.UserID != "" {
		data["user_id"] = sub.UserID
	}

	if _, _, err := q.Upsert(data, "id", "minimal", "").Execute(); err != nil {
		return translateError(fmt.Sprintf("failed to upsert subscription %s", sub.ID), subscriptionsTable, "", err)
	}

	r.logger.Debug("Subscription upserted", "subscription_id", sub.ID, "plan", sub.Plan, "status", sub.Status)
	return nil
}

func mapToSubscription(data map[string]interface{}) *domain.Subscription {
	sub := &domain.Subscription{
		ID:         getString(data, "id"),
		UserID:     getString(data, "user_id"),
		CustomerID: getString(data, "stripe_customer_id"),
		Plan:       domain.NormalizePlan(getString(data, "plan")),
		Status:     getString(data, "status"),
	}
	if interval, ok := domain.ParseInterval(getString(data, "interval")); ok {
		sub.Interval = interval
	}
	if created := getTime(data, "created_at"); created != nil {
		sub.CreatedAt = *created
	}
	return sub
}
