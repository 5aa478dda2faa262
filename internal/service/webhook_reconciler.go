package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plan-gate-server/internal/domain"
)

// PriceLookup reverse-maps price ids to catalog pairs.
type PriceLookup interface {
	PlanIntervalFromPriceID(ctx context.Context, priceID string) (domain.PlanInterval, bool)
}

// WebhookReconciler applies verified billing events to the subscription
// ledger and mirrors the result onto the user's profile. Replaying an
// event produces the same state.
type WebhookReconciler struct {
	subscriptions domain.SubscriptionRepository
	profiles      domain.ProfileRepository
	provider      domain.BillingProvider
	prices        PriceLookup
	logger        domain.Logger
	now           func() time.Time
}

func NewWebhookReconciler(
	subscriptions domain.SubscriptionRepository,
	profiles domain.ProfileRepository,
	provider domain.BillingProvider,
	prices PriceLookup,
	logger domain.Logger,
) *WebhookReconciler {
	return &WebhookReconciler{
		subscriptions: subscriptions,
		profiles:      profiles,
		provider:      provider,
		prices:        prices,
		logger:        logger,
		now:           time.Now,
	}
}

// HandleEvent reconciles one event. Unhandled event types are ignored.
func (r *WebhookReconciler) HandleEvent(ctx context.Context, event *domain.BillingEvent) error {
	switch event.Type {
	case domain.EventCheckoutCompleted:
		if event.Checkout == nil {
			return fmt.Errorf("event %s: missing checkout payload", event.ID)
		}
		return r.handleCheckoutCompleted(ctx, event.Checkout)
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return fmt.Errorf("event %s: missing subscription payload", event.ID)
		}
		return r.handleSubscriptionChange(ctx, event.Subscription)
	default:
		r.logger.Debug("Ignoring billing event", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

func (r *WebhookReconciler) handleCheckoutCompleted(ctx context.Context, session *domain.CheckoutCompleted) error {
	if session.SubscriptionID == "" {
		r.logger.Info("Checkout completed without a subscription, skipping", "session_id", session.SessionID)
		return nil
	}

	customerID := session.CustomerID
	// A session carries no price, so its metadata is only trusted when it
	// names both plan and interval.
	plan, interval, ok := checkoutPlan(session.Metadata)
	if !ok || customerID == "" {
		sub, err := r.provider.GetSubscription(ctx, session.SubscriptionID)
		if err != nil {
			return fmt.Errorf("fetch subscription %s: %w", session.SubscriptionID, err)
		}
		if customerID == "" {
			customerID = sub.CustomerID
		}
		if !ok {
			plan, interval = r.resolvePlan(ctx, sub)
		}
	}

	userID := r.resolveUser(ctx, session.Metadata, customerID, session.Email)

	return r.persist(ctx, &domain.Subscription{
		ID:         session.SubscriptionID,
		UserID:     userID,
		CustomerID: customerID,
		Plan:       plan,
		Interval:   interval,
		Status:     "active",
	})
}

func (r *WebhookReconciler) handleSubscriptionChange(ctx context.Context, sub *domain.BillingSubscription) error {
	plan, interval := r.resolvePlan(ctx, sub)
	userID := r.resolveUser(ctx, sub.Metadata, sub.CustomerID, "")

	return r.persist(ctx, &domain.Subscription{
		ID:         sub.ID,
		UserID:     userID,
		CustomerID: sub.CustomerID,
		Plan:       plan,
		Interval:   interval,
		Status:     sub.Status,
	})
}

func (r *WebhookReconciler) persist(ctx context.Context, sub *domain.Subscription) error {
	if err := r.subscriptions.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.ID, err)
	}
	r.logger.Info("Subscription reconciled",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"plan", sub.Plan,
		"interval", sub.Interval,
		"status", sub.Status,
	)

	if sub.UserID == "" {
		r.logger.Warn("Subscription has no linked user, profile not updated", "subscription_id", sub.ID, "customer_id", sub.CustomerID)
		return nil
	}
	return r.mirrorProfile(ctx, sub)
}

// mirrorProfile copies plan state onto the profile. When the optional plan
// columns are missing it falls back to recording only the customer id.
func (r *WebhookReconciler) mirrorProfile(ctx context.Context, sub *domain.Subscription) error {
	at := r.now().UTC()
	err := r.profiles.MirrorPlan(ctx, sub.UserID, domain.PlanMirror{
		CustomerID: sub.CustomerID,
		Plan:       sub.Plan,
		Status:     sub.Status,
		Interval:   sub.Interval,
		UpdatedAt:  at,
	})
	if err == nil {
		return nil
	}
	if !domain.IsSchemaDrift(err) {
		return fmt.Errorf("mirror plan for %s: %w", sub.UserID, err)
	}

	r.logger.Warn("Profile plan columns missing, storing customer id only", "user_id", sub.UserID, "error", err)
	if err := r.profiles.SetCustomerID(ctx, sub.UserID, sub.CustomerID, at); err != nil {
		if domain.IsSchemaDrift(err) {
			r.logger.Warn("Profile customer column missing", "user_id", sub.UserID, "error", err)
			return nil
		}
		return fmt.Errorf("record customer for %s: %w", sub.UserID, err)
	}
	return nil
}

// resolveUser walks the user sources in order. An unresolved user is not an
// error: the ledger row is still written and linked on a later event.
func (r *WebhookReconciler) resolveUser(ctx context.Context, metadata map[string]string, customerID, email string) string {
	steps := []resolveStep{
		{name: "metadata", resolve: func(context.Context) (string, error) {
			return strings.TrimSpace(metadata[domain.MetadataUserID]), nil
		}},
	}
	if customerID != "" {
		steps = append(steps,
			resolveStep{name: "ledger", resolve: func(ctx context.Context) (string, error) {
				return r.subscriptions.UserIDByCustomer(ctx, customerID)
			}},
			resolveStep{name: "profile_customer", resolve: func(ctx context.Context) (string, error) {
				return r.profiles.UserIDByCustomer(ctx, customerID)
			}},
		)
	}
	if email != "" {
		steps = append(steps, resolveStep{name: "profile_email", resolve: func(ctx context.Context) (string, error) {
			return r.profiles.UserIDByEmail(ctx, email)
		}})
	}
	if customerID != "" {
		steps = append(steps, resolveStep{name: "customer_metadata", resolve: func(ctx context.Context) (string, error) {
			customer, err := r.provider.GetCustomer(ctx, customerID)
			if err != nil {
				if errors.Is(err, domain.ErrNoBillingCustomer) {
					return "", nil
				}
				return "", err
			}
			return strings.TrimSpace(customer.Metadata[domain.MetadataUserID]), nil
		}})
	}

	userID, _, _ := resolveFirst(ctx, r.logger, "webhook_user", steps...)
	return userID
}

// resolvePlan derives plan and interval from a subscription: its metadata,
// the catalog, the price nickname, then the product. Nothing matching
// yields the free plan.
func (r *WebhookReconciler) resolvePlan(ctx context.Context, sub *domain.BillingSubscription) (domain.Plan, domain.Interval) {
	price := sub.Price
	if plan, interval, ok := planFromMetadata(sub.Metadata, price); ok {
		return plan, interval
	}

	interval := priceInterval(price)
	if price == nil {
		r.logger.Warn("Subscription has no price, defaulting to free", "subscription_id", sub.ID)
		return domain.PlanFree, interval
	}

	if pi, ok := r.prices.PlanIntervalFromPriceID(ctx, price.ID); ok {
		return pi.Plan, pi.Interval
	}
	if plan, ok := planFromName(price.Nickname); ok {
		return plan, interval
	}
	if price.Nickname != "" {
		r.logger.Warn("Price nickname does not name a plan", "price_id", price.ID, "nickname", price.Nickname)
	}

	if plan, ok := r.planFromProduct(ctx, price); ok {
		return plan, interval
	}

	r.logger.Warn("Could not resolve plan for subscription, defaulting to free", "subscription_id", sub.ID, "price_id", price.ID)
	return domain.PlanFree, interval
}

func (r *WebhookReconciler) planFromProduct(ctx context.Context, price *domain.BillingPrice) (domain.Plan, bool) {
	product := price.Product
	if product == nil {
		if price.ProductID == "" {
			return "", false
		}
		fetched, err := r.provider.GetProduct(ctx, price.ProductID)
		if err != nil {
			r.logger.Warn("Unable to fetch product", "product_id", price.ProductID, "error", err)
			return "", false
		}
		product = fetched
	}

	if plan, ok := domain.ParsePaidPlan(product.Metadata["tier"]); ok {
		return plan, true
	}
	return planFromName(product.Name)
}

// planFromMetadata accepts a paid plan tag. The interval falls back to the
// price's cadence, then monthly.
func planFromMetadata(metadata map[string]string, price *domain.BillingPrice) (domain.Plan, domain.Interval, bool) {
	plan, ok := domain.ParsePaidPlan(metadata["plan"])
	if !ok {
		return "", "", false
	}
	if interval, ok := domain.ParseInterval(metadata["interval"]); ok {
		return plan, interval, true
	}
	return plan, priceInterval(price), true
}

func checkoutPlan(metadata map[string]string) (domain.Plan, domain.Interval, bool) {
	plan, ok := domain.ParsePaidPlan(metadata["plan"])
	if !ok {
		return "", "", false
	}
	interval, ok := domain.ParseInterval(metadata["interval"])
	if !ok {
		return "", "", false
	}
	return plan, interval, true
}

// planFromName maps names such as "PRO month" or "Acme LEGENDARY". Names
// mentioning neither tier do not match.
func planFromName(name string) (domain.Plan, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, string(domain.PlanLegendary)):
		return domain.PlanLegendary, true
	case strings.Contains(lower, string(domain.PlanPro)):
		return domain.PlanPro, true
	default:
		return "", false
	}
}

func priceInterval(price *domain.BillingPrice) domain.Interval {
	if price != nil {
		if interval, ok := domain.ParseInterval(string(price.Interval)); ok {
			return interval
		}
	}
	return domain.IntervalMonth
}
