package domain

import "context"

// Billing event types consumed by the webhook reconciler.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// MetadataUserID is the metadata key linking provider objects to a user.
const MetadataUserID = "supabase_user_id"

// BillingCustomer is a provider customer record.
type BillingCustomer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// BillingProduct is a provider product record.
type BillingProduct struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// BillingPrice is a recurring provider price.
type BillingPrice struct {
	ID         string
	Nickname   string
	UnitAmount int64
	Interval   Interval
	ProductID  string
	// Product is set only when the provider expanded it.
	Product *BillingProduct
}

// BillingSubscription is the subset of a provider subscription used for
// reconciliation.
type BillingSubscription struct {
	ID         string
	CustomerID string
	Status     string
	Metadata   map[string]string
	Price      *BillingPrice
}

// CheckoutCompleted is the payload of a completed checkout session.
type CheckoutCompleted struct {
	SessionID      string
	SubscriptionID string
	CustomerID     string
	Email          string
	Metadata       map[string]string
}

// BillingEvent is a verified webhook delivery.
type BillingEvent struct {
	ID           string
	Type         string
	Checkout     *CheckoutCompleted
	Subscription *BillingSubscription
}

// CheckoutSessionRequest describes a hosted subscription checkout.
type CheckoutSessionRequest struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// PriceSpec describes a recurring price to create.
type PriceSpec struct {
	ProductID  string
	Currency   string
	UnitAmount int64
	Interval   Interval
	Nickname   string
}

// BillingProvider is the port onto the payment provider. Implementations
// return ErrNoBillingCustomer for missing or deleted customers and wrap every
// other upstream failure with ErrProviderUnavailable.
type BillingProvider interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*BillingCustomer, error)
	UpdateCustomer(ctx context.Context, customerID, email string, metadata map[string]string) error
	GetCustomer(ctx context.Context, customerID string) (*BillingCustomer, error)
	FindCustomerIDByEmail(ctx context.Context, email string) (string, error)

	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*BillingSubscription, error)
	GetProduct(ctx context.Context, productID string) (*BillingProduct, error)

	ListActiveProducts(ctx context.Context) ([]BillingProduct, error)
	CreateProduct(ctx context.Context, name string, metadata map[string]string) (*BillingProduct, error)
	ListActivePrices(ctx context.Context, productID string) ([]BillingPrice, error)
	CreatePrice(ctx context.Context, spec PriceSpec) (*BillingPrice, error)
}

// EventVerifier authenticates and decodes webhook payloads.
type EventVerifier interface {
	Verify(payload []byte, signature string) (*BillingEvent, error)
}
