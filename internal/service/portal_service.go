package service

import (
	"context"
	"fmt"

	"plan-gate-server/internal/domain"
)

// PortalService opens the provider's self-service billing portal.
type PortalService struct {
	customers *CustomerResolver
	provider  domain.BillingProvider
	appURL    string
	logger    domain.Logger
}

func NewPortalService(customers *CustomerResolver, provider domain.BillingProvider, appURL string, logger domain.Logger) *PortalService {
	return &PortalService{customers: customers, provider: provider, appURL: appURL, logger: logger}
}

// OpenPortal returns a portal URL for the user's billing customer.
func (s *PortalService) OpenPortal(ctx context.Context, user *domain.SupabaseUser) (string, error) {
	if s.appURL == "" {
		return "", domain.ErrAppURLNotConfigured
	}

	customerID, source, err := s.customers.ResolveForPortal(ctx, user.ID, user.Email)
	if customerID == "" {
		if err != nil {
			return "", fmt.Errorf("resolve customer: %w", err)
		}
		return "", domain.ErrNoBillingCustomer
	}

	// The stored id may point at a customer deleted in the provider.
	if _, err := s.provider.GetCustomer(ctx, customerID); err != nil {
		s.logger.Warn("Billing customer not usable", "user_id", user.ID, "customer_id", customerID, "source", source, "error", err)
		return "", err
	}

	url, err := s.provider.CreatePortalSession(ctx, customerID, s.appURL+"/dashboard")
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return url, nil
}
