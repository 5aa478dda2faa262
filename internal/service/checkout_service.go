package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plan-gate-server/internal/domain"
	"plan-gate-server/internal/metrics"
)

// PriceResolver maps a purchasable pair to a price id.
type PriceResolver interface {
	PriceIDFor(ctx context.Context, plan domain.Plan, interval domain.Interval) (string, error)
}

// CheckoutService starts hosted subscription checkouts.
type CheckoutService struct {
	prices    PriceResolver
	customers *CustomerResolver
	provider  domain.BillingProvider
	profiles  domain.ProfileRepository
	appURL    string
	logger    domain.Logger
	now       func() time.Time
}

func NewCheckoutService(
	prices PriceResolver,
	customers *CustomerResolver,
	provider domain.BillingProvider,
	profiles domain.ProfileRepository,
	appURL string,
	logger domain.Logger,
) *CheckoutService {
	return &CheckoutService{
		prices:    prices,
		customers: customers,
		provider:  provider,
		profiles:  profiles,
		appURL:    appURL,
		logger:    logger,
		now:       time.Now,
	}
}

// StartCheckout returns the hosted checkout URL for the requested plan.
func (s *CheckoutService) StartCheckout(ctx context.Context, user *domain.SupabaseUser, planValue, intervalValue string) (string, error) {
	plan, ok := domain.ParsePaidPlan(planValue)
	if !ok {
		return "", fmt.Errorf("%w: plan %q", domain.ErrInvalidPlanSelection, planValue)
	}
	interval, ok := domain.ParseInterval(intervalValue)
	if !ok {
		return "", fmt.Errorf("%w: interval %q", domain.ErrInvalidPlanSelection, intervalValue)
	}
	if s.appURL == "" {
		return "", domain.ErrAppURLNotConfigured
	}

	priceID, err := s.prices.PriceIDFor(ctx, plan, interval)
	if err != nil {
		return "", fmt.Errorf("resolve price: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", fmt.Errorf("resolve customer: %w", err)
	}

	url, err := s.provider.CreateCheckoutSession(ctx, domain.CheckoutSessionRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.appURL + "/dashboard?checkout=success",
		CancelURL:  s.appURL + "/pricing?checkout=cancel",
		Metadata: map[string]string{
			"plan":                string(plan),
			"interval":            string(interval),
			domain.MetadataUserID: user.ID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	metrics.CheckoutSessionsTotal.WithLabelValues(string(plan), string(interval)).Inc()
	s.logger.Info("Checkout session created", "user_id", user.ID, "plan", plan, "interval", interval)
	return url, nil
}

// ensureCustomer reuses a known customer or creates one tagged with the
// user id. A customer found outside the profile is written back to it.
func (s *CheckoutService) ensureCustomer(ctx context.Context, user *domain.SupabaseUser) (string, error) {
	metadata := map[string]string{domain.MetadataUserID: user.ID}

	customerID, source, err := s.customers.LocalCustomerID(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Customer lookup degraded", "user_id", user.ID, "error", err)
	}

	if customerID != "" {
		err := s.provider.UpdateCustomer(ctx, customerID, user.Email, metadata)
		switch {
		case errors.Is(err, domain.ErrNoBillingCustomer):
			s.logger.Warn("Stored billing customer no longer exists", "user_id", user.ID, "customer_id", customerID)
			customerID = ""
		case err != nil:
			return "", err
		}
	}

	if customerID == "" {
		customer, err := s.provider.CreateCustomer(ctx, user.Email, metadata)
		if err != nil {
			return "", err
		}
		customerID = customer.ID
		source = ""
		s.logger.Info("Billing customer created", "user_id", user.ID, "customer_id", customerID)
	}

	if source != customerSourceProfile {
		if err := s.profiles.SetCustomerID(ctx, user.ID, customerID, s.now().UTC()); err != nil {
			s.logger.Warn("Failed to record customer on profile", "user_id", user.ID, "error", err)
		}
	}
	return customerID, nil
}
