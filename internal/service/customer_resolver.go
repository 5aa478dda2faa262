package service

import (
	"context"

	"plan-gate-server/internal/domain"
)

// Customer resolution sources, in lookup order.
const (
	customerSourceProfile  = "profile"
	customerSourceLedger   = "ledger"
	customerSourceProvider = "provider_email"
)

// CustomerResolver finds the billing customer id recorded for a user.
type CustomerResolver struct {
	profiles      domain.ProfileRepository
	subscriptions domain.SubscriptionRepository
	provider      domain.BillingProvider
	logger        domain.Logger
}

func NewCustomerResolver(
	profiles domain.ProfileRepository,
	subscriptions domain.SubscriptionRepository,
	provider domain.BillingProvider,
	logger domain.Logger,
) *CustomerResolver {
	return &CustomerResolver{
		profiles:      profiles,
		subscriptions: subscriptions,
		provider:      provider,
		logger:        logger,
	}
}

// LocalCustomerID checks the profile, then the newest ledger row.
func (r *CustomerResolver) LocalCustomerID(ctx context.Context, userID string) (string, string, error) {
	return resolveFirst(ctx, r.logger, "customer", r.localSteps(userID)...)
}

// ResolveForPortal extends the local lookup with a provider search by email.
func (r *CustomerResolver) ResolveForPortal(ctx context.Context, userID, email string) (string, string, error) {
	steps := r.localSteps(userID)
	if email != "" {
		steps = append(steps, resolveStep{
			name: customerSourceProvider,
			resolve: func(ctx context.Context) (string, error) {
				return r.provider.FindCustomerIDByEmail(ctx, email)
			},
		})
	}
	return resolveFirst(ctx, r.logger, "portal_customer", steps...)
}

func (r *CustomerResolver) localSteps(userID string) []resolveStep {
	return []resolveStep{
		{
			name: customerSourceProfile,
			resolve: func(ctx context.Context) (string, error) {
				return r.profiles.CustomerID(ctx, userID)
			},
		},
		{
			name: customerSourceLedger,
			resolve: func(ctx context.Context) (string, error) {
				return r.subscriptions.LatestCustomerIDForUser(ctx, userID)
			},
		},
	}
}
