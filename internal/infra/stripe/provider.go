package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"plan-gate-server/internal/domain"
)

// Provider implements domain.BillingProvider on the Stripe API.
type Provider struct {
	api    *client.API
	logger domain.Logger
}

// NewProvider creates a provider for secretKey. backends may be nil; tests
// pass backends pointed at a local server.
func NewProvider(secretKey string, backends *stripelib.Backends, logger domain.Logger) *Provider {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Provider{api: api, logger: logger}
}

// NewTestBackends returns backends that send every call to baseURL without retries.
func NewTestBackends(baseURL string) *stripelib.Backends {
	backend := stripelib.GetBackendWithConfig(stripelib.APIBackend, &stripelib.BackendConfig{
		URL:               stripelib.String(baseURL),
		MaxNetworkRetries: stripelib.Int64(0),
		LeveledLogger:     &stripelib.LeveledLogger{Level: stripelib.LevelNull},
	})
	return &stripelib.Backends{API: backend, Connect: backend, Uploads: backend}
}

func (p *Provider) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*domain.BillingCustomer, error) {
	params := &stripelib.CustomerParams{Metadata: metadata}
	params.Context = ctx
	if email != "" {
		params.Email = stripelib.String(email)
	}
	c, err := p.api.Customers.New(params)
	if err != nil {
		return nil, unavailable("create customer", err)
	}
	return toCustomer(c), nil
}

func (p *Provider) UpdateCustomer(ctx context.Context, customerID, email string, metadata map[string]string) error {
	params := &stripelib.CustomerParams{Metadata: metadata}
	params.Context = ctx
	if email != "" {
		params.Email = stripelib.String(email)
	}
	if _, err := p.api.Customers.Update(customerID, params); err != nil {
		if isResourceMissing(err) {
			return domain.ErrNoBillingCustomer
		}
		return unavailable("update customer", err)
	}
	return nil
}

// GetCustomer maps a deleted or unknown customer to ErrNoBillingCustomer.
func (p *Provider) GetCustomer(ctx context.Context, customerID string) (*domain.BillingCustomer, error) {
	params := &stripelib.CustomerParams{}
	params.Context = ctx
	c, err := p.api.Customers.Get(customerID, params)
	if err != nil {
		if isResourceMissing(err) {
			return nil, domain.ErrNoBillingCustomer
		}
		return nil, unavailable("get customer", err)
	}
	if c == nil || c.Deleted {
		return nil, domain.ErrNoBillingCustomer
	}
	return toCustomer(c), nil
}

func (p *Provider) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", nil
	}
	params := &stripelib.CustomerListParams{Email: stripelib.String(email)}
	params.Context = ctx
	params.Limit = stripelib.Int64(1)
	params.Single = true

	iter := p.api.Customers.List(params)
	for iter.Next() {
		if c := iter.Customer(); c != nil && !c.Deleted {
			return c.ID, nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", unavailable("list customers", err)
	}
	return "", nil
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (string, error) {
	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		Customer:   stripelib.String(req.CustomerID),
		SuccessURL: stripelib.String(req.SuccessURL),
		CancelURL:  stripelib.String(req.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(req.PriceID),
				Quantity: stripelib.Int64(1),
			},
		},
		AllowPromotionCodes: stripelib.Bool(true),
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", unavailable("create checkout session", err)
	}
	if s.URL == "" {
		return "", fmt.Errorf("%w: checkout session %s has no url", domain.ErrProviderUnavailable, s.ID)
	}
	return s.URL, nil
}

func (p *Provider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripelib.BillingPortalSessionParams{
		Customer:  stripelib.String(customerID),
		ReturnURL: stripelib.String(returnURL),
	}
	params.Context = ctx
	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		if isResourceMissing(err) {
			return "", domain.ErrNoBillingCustomer
		}
		return "", unavailable("create portal session", err)
	}
	return s.URL, nil
}

// GetSubscription expands the first price's product so tier metadata is available.
func (p *Provider) GetSubscription(ctx context.Context, subscriptionID string) (*domain.BillingSubscription, error) {
	params := &stripelib.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price.product")
	s, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, unavailable("get subscription", err)
	}

	sub := &domain.BillingSubscription{
		ID:       s.ID,
		Status:   string(s.Status),
		Metadata: s.Metadata,
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item != nil && item.Price != nil {
				sub.Price = toPrice(item.Price)
				break
			}
		}
	}
	return sub, nil
}

func (p *Provider) GetProduct(ctx context.Context, productID string) (*domain.BillingProduct, error) {
	params := &stripelib.ProductParams{}
	params.Context = ctx
	prod, err := p.api.Products.Get(productID, params)
	if err != nil {
		return nil, unavailable("get product", err)
	}
	return toProduct(prod), nil
}

func (p *Provider) ListActiveProducts(ctx context.Context) ([]domain.BillingProduct, error) {
	params := &stripelib.ProductListParams{Active: stripelib.Bool(true)}
	params.Context = ctx
	params.Limit = stripelib.Int64(100)

	var out []domain.BillingProduct
	iter := p.api.Products.List(params)
	for iter.Next() {
		out = append(out, *toProduct(iter.Product()))
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("list products", err)
	}
	return out, nil
}

func (p *Provider) CreateProduct(ctx context.Context, name string, metadata map[string]string) (*domain.BillingProduct, error) {
	params := &stripelib.ProductParams{
		Name:     stripelib.String(name),
		Metadata: metadata,
	}
	params.Context = ctx
	prod, err := p.api.Products.New(params)
	if err != nil {
		return nil, unavailable("create product", err)
	}
	return toProduct(prod), nil
}

func (p *Provider) ListActivePrices(ctx context.Context, productID string) ([]domain.BillingPrice, error) {
	params := &stripelib.PriceListParams{
		Active:  stripelib.Bool(true),
		Product: stripelib.String(productID),
	}
	params.Context = ctx
	params.Limit = stripelib.Int64(100)

	var out []domain.BillingPrice
	iter := p.api.Prices.List(params)
	for iter.Next() {
		out = append(out, *toPrice(iter.Price()))
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("list prices", err)
	}
	return out, nil
}

func (p *Provider) CreatePrice(ctx context.Context, spec domain.PriceSpec) (*domain.BillingPrice, error) {
	params := &stripelib.PriceParams{
		Product:    stripelib.String(spec.ProductID),
		Currency:   stripelib.String(spec.Currency),
		UnitAmount: stripelib.Int64(spec.UnitAmount),
		Recurring: &stripelib.PriceRecurringParams{
			Interval: stripelib.String(string(spec.Interval)),
		},
	}
	if spec.Nickname != "" {
		params.Nickname = stripelib.String(spec.Nickname)
	}
	params.Context = ctx
	price, err := p.api.Prices.New(params)
	if err != nil {
		return nil, unavailable("create price", err)
	}
	return toPrice(price), nil
}

func toCustomer(c *stripelib.Customer) *domain.BillingCustomer {
	return &domain.BillingCustomer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}
}

func toProduct(prod *stripelib.Product) *domain.BillingProduct {
	return &domain.BillingProduct{ID: prod.ID, Name: prod.Name, Metadata: prod.Metadata}
}

func toPrice(price *stripelib.Price) *domain.BillingPrice {
	out := &domain.BillingPrice{
		ID:         price.ID,
		Nickname:   price.Nickname,
		UnitAmount: price.UnitAmount,
	}
	if price.Recurring != nil {
		if interval, ok := domain.ParseInterval(string(price.Recurring.Interval)); ok {
			out.Interval = interval
		}
	}
	if price.Product != nil {
		out.ProductID = price.Product.ID
		if price.Product.Name != "" || len(price.Product.Metadata) > 0 {
			out.Product = toProduct(price.Product)
		}
	}
	return out
}

func isResourceMissing(err error) bool {
	var stripeErr *stripelib.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripelib.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, op, err)
}
