package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"

	"plan-gate-server/internal/domain"
)

// Verifier checks Stripe-Signature headers and decodes the events the
// reconciler handles.
type Verifier struct {
	secret string
}

// NewVerifier creates a verifier for the endpoint signing secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret)}
}

// Verify authenticates payload. Unhandled event types decode to an event with
// only ID and Type set.
func (v *Verifier) Verify(payload []byte, signature string) (*domain.BillingEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	out := &domain.BillingEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case domain.EventCheckoutCompleted:
		var session checkoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		out.Checkout = session.toDomain()

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.Subscription = sub.toDomain()
	}
	return out, nil
}

// checkoutSession is a minimal representation of a Stripe checkout.session event.
type checkoutSession struct {
	ID              string `json:"id"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

func (s checkoutSession) toDomain() *domain.CheckoutCompleted {
	email := s.CustomerDetails.Email
	if email == "" {
		email = s.CustomerEmail
	}
	return &domain.CheckoutCompleted{
		SessionID:      s.ID,
		SubscriptionID: s.Subscription,
		CustomerID:     s.Customer,
		Email:          email,
		Metadata:       s.Metadata,
	}
}

// subscription is a minimal representation of a Stripe subscription event.
type subscription struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Items    struct {
		Data []struct {
			Price eventPrice `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type eventPrice struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	UnitAmount int64  `json:"unit_amount"`
	Recurring  *struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
	// Product is an id unless the event was sent with expansion.
	Product json.RawMessage `json:"product"`
}

func (s subscription) toDomain() *domain.BillingSubscription {
	out := &domain.BillingSubscription{
		ID:         s.ID,
		CustomerID: s.Customer,
		Status:     s.Status,
		Metadata:   s.Metadata,
	}
	for _, item := range s.Items.Data {
		if strings.TrimSpace(item.Price.ID) != "" {
			out.Price = item.Price.toDomain()
			break
		}
	}
	return out
}

func (p eventPrice) toDomain() *domain.BillingPrice {
	out := &domain.BillingPrice{ID: p.ID, Nickname: p.Nickname, UnitAmount: p.UnitAmount}
	if p.Recurring != nil {
		if interval, ok := domain.ParseInterval(p.Recurring.Interval); ok {
			out.Interval = interval
		}
	}

	var productID string
	if err := json.Unmarshal(p.Product, &productID); err == nil {
		out.ProductID = productID
		return out
	}
	var product struct {
		ID       string            `json:"id"`
		Name     string            `json:"name"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(p.Product, &product); err == nil && product.ID != "" {
		out.ProductID = product.ID
		out.Product = &domain.BillingProduct{ID: product.ID, Name: product.Name, Metadata: product.Metadata}
	}
	return out
}
