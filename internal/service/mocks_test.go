package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"plan-gate-server/internal/domain"
)

// MockLogger records warnings so tests can assert on degraded paths.
type MockLogger struct {
	mu    sync.Mutex
	warns []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (l *MockLogger) Info(string, ...interface{})         {}
func (l *MockLogger) Error(string, error, ...interface{}) {}
func (l *MockLogger) Debug(string, ...interface{})        {}

func (l *MockLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *MockLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// fakeSubscriptions is an in-memory ledger.
type fakeSubscriptions struct {
	mu      sync.Mutex
	rows    map[string]domain.Subscription
	clock   time.Time
	err     error
	upserts int
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{
		rows:  make(map[string]domain.Subscription),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeSubscriptions) latest(userID string) *domain.Subscription {
	var best *domain.Subscription
	for _, row := range f.rows {
		if row.UserID != userID {
			continue
		}
		r := row
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = &r
		}
	}
	return best
}

func (f *fakeSubscriptions) LatestForUser(_ context.Context, userID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.latest(userID), nil
}

func (f *fakeSubscriptions) LatestCustomerIDForUser(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if row := f.latest(userID); row != nil {
		return row.CustomerID, nil
	}
	return "", nil
}

func (f *fakeSubscriptions) UserIDByCustomer(_ context.Context, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for _, row := range f.rows {
		if row.CustomerID == customerID && row.UserID != "" {
			return row.UserID, nil
		}
	}
	return "", nil
}

// Upsert keeps created_at and a known user id on conflict, like the real
// repositories.
func (f *fakeSubscriptions) Upsert(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts++
	row := *sub
	if existing, ok := f.rows[sub.ID]; ok {
		row.CreatedAt = existing.CreatedAt
		if row.UserID == "" {
			row.UserID = existing.UserID
		}
	} else {
		f.clock = f.clock.Add(time.Second)
		row.CreatedAt = f.clock
	}
	f.rows[sub.ID] = row
	return nil
}

func (f *fakeSubscriptions) get(id string) (domain.Subscription, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	return row, ok
}

type profileRow struct {
	email      string
	customerID string
	mirror     *domain.PlanMirror
	stamps     map[string]*time.Time
}

// fakeProfiles is an in-memory profile table with switchable schema drift.
type fakeProfiles struct {
	mu   sync.Mutex
	rows map[string]*profileRow

	noPlanColumns     bool
	noCooldownColumns bool
	noCustomerColumn  bool
	readErr           error
	stampErr          error

	// beforeStamp runs inside StampLastRun before the compare, to simulate
	// a concurrent writer.
	beforeStamp func(row *profileRow)
	stampCalls  int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[string]*profileRow)}
}

func (f *fakeProfiles) add(userID, email string) *profileRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := &profileRow{email: email, stamps: make(map[string]*time.Time)}
	f.rows[userID] = row
	return row
}

func (f *fakeProfiles) row(userID string) *profileRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[userID]
}

func drift(column string) error {
	return &domain.SchemaDriftError{Table: "profiles", Column: column, Code: "42703"}
}

func (f *fakeProfiles) CustomerID(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noCustomerColumn {
		return "", drift("stripe_customer_id")
	}
	if row := f.rows[userID]; row != nil {
		return row.customerID, nil
	}
	return "", nil
}

func (f *fakeProfiles) UserIDByCustomer(_ context.Context, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noCustomerColumn {
		return "", drift("stripe_customer_id")
	}
	for id, row := range f.rows {
		if row.customerID == customerID {
			return id, nil
		}
	}
	return "", nil
}

func (f *fakeProfiles) UserIDByEmail(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, row := range f.rows {
		if strings.EqualFold(row.email, email) {
			return id, nil
		}
	}
	return "", nil
}

func (f *fakeProfiles) SetCustomerID(_ context.Context, userID, customerID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noCustomerColumn {
		return drift("stripe_customer_id")
	}
	if row := f.rows[userID]; row != nil {
		row.customerID = customerID
	}
	return nil
}

func (f *fakeProfiles) MirrorPlan(_ context.Context, userID string, m domain.PlanMirror) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noPlanColumns {
		return drift("plan")
	}
	if row := f.rows[userID]; row != nil {
		mirror := m
		row.mirror = &mirror
		row.customerID = m.CustomerID
	}
	return nil
}

func (f *fakeProfiles) LastRunAt(_ context.Context, userID, column string) (*time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, false, f.readErr
	}
	if f.noCooldownColumns {
		return nil, false, drift(column)
	}
	row := f.rows[userID]
	if row == nil {
		return nil, false, nil
	}
	return row.stamps[column], true, nil
}

func (f *fakeProfiles) StampLastRun(_ context.Context, userID, column string, prev *time.Time, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stampCalls++
	if f.stampErr != nil {
		return false, f.stampErr
	}
	if f.noCooldownColumns {
		return false, drift(column)
	}
	row := f.rows[userID]
	if row == nil {
		return false, nil
	}
	if f.beforeStamp != nil {
		f.beforeStamp(row)
		f.beforeStamp = nil
	}

	current := row.stamps[column]
	switch {
	case prev == nil && current != nil:
		return false, nil
	case prev != nil && (current == nil || !current.Equal(*prev)):
		return false, nil
	case current != nil && !at.After(*current):
		return false, nil
	}
	stamp := at
	row.stamps[column] = &stamp
	return true, nil
}

// fakeProvider is an in-memory billing provider.
type fakeProvider struct {
	mu sync.Mutex

	customers     map[string]*domain.BillingCustomer
	products      []domain.BillingProduct
	prices        map[string][]domain.BillingPrice
	subscriptions map[string]*domain.BillingSubscription

	checkouts []domain.CheckoutSessionRequest
	portals   []string
	nextID    int

	createdCustomers int
	createdProducts  int
	createdPrices    int
	productLists     int

	failWith error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers:     make(map[string]*domain.BillingCustomer),
		prices:        make(map[string][]domain.BillingPrice),
		subscriptions: make(map[string]*domain.BillingSubscription),
	}
}

func (p *fakeProvider) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s_%03d", prefix, p.nextID)
}

func (p *fakeProvider) CreateCustomer(_ context.Context, email string, metadata map[string]string) (*domain.BillingCustomer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.createdCustomers++
	c := &domain.BillingCustomer{ID: p.id("cus"), Email: email, Metadata: copyMap(metadata)}
	p.customers[c.ID] = c
	return c, nil
}

func (p *fakeProvider) UpdateCustomer(_ context.Context, customerID, email string, metadata map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	c, ok := p.customers[customerID]
	if !ok {
		return domain.ErrNoBillingCustomer
	}
	c.Email = email
	for k, v := range metadata {
		c.Metadata[k] = v
	}
	return nil
}

func (p *fakeProvider) GetCustomer(_ context.Context, customerID string) (*domain.BillingCustomer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	c, ok := p.customers[customerID]
	if !ok {
		return nil, domain.ErrNoBillingCustomer
	}
	return c, nil
}

func (p *fakeProvider) FindCustomerIDByEmail(_ context.Context, email string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	ids := make([]string, 0, len(p.customers))
	for id := range p.customers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if p.customers[id].Email == email {
			return id, nil
		}
	}
	return "", nil
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req domain.CheckoutSessionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	p.checkouts = append(p.checkouts, req)
	return "https://checkout.example.com/" + p.id("cs"), nil
}

func (p *fakeProvider) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	p.portals = append(p.portals, customerID+"|"+returnURL)
	return "https://billing.example.com/" + customerID, nil
}

func (p *fakeProvider) GetSubscription(_ context.Context, subscriptionID string) (*domain.BillingSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	sub, ok := p.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s not found", domain.ErrProviderUnavailable, subscriptionID)
	}
	return sub, nil
}

func (p *fakeProvider) GetProduct(_ context.Context, productID string) (*domain.BillingProduct, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, prod := range p.products {
		if prod.ID == productID {
			out := prod
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: product %s not found", domain.ErrProviderUnavailable, productID)
}

func (p *fakeProvider) ListActiveProducts(context.Context) ([]domain.BillingProduct, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.productLists++
	return append([]domain.BillingProduct{}, p.products...), nil
}

func (p *fakeProvider) CreateProduct(_ context.Context, name string, metadata map[string]string) (*domain.BillingProduct, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.createdProducts++
	prod := domain.BillingProduct{ID: p.id("prod"), Name: name, Metadata: copyMap(metadata)}
	p.products = append(p.products, prod)
	return &prod, nil
}

func (p *fakeProvider) ListActivePrices(_ context.Context, productID string) ([]domain.BillingPrice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	return append([]domain.BillingPrice{}, p.prices[productID]...), nil
}

func (p *fakeProvider) CreatePrice(_ context.Context, spec domain.PriceSpec) (*domain.BillingPrice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.createdPrices++
	price := domain.BillingPrice{
		ID:         p.id("price"),
		Nickname:   spec.Nickname,
		UnitAmount: spec.UnitAmount,
		Interval:   spec.Interval,
		ProductID:  spec.ProductID,
	}
	p.prices[spec.ProductID] = append(p.prices[spec.ProductID], price)
	return &price, nil
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// mapPriceCache is a minimal domain.PriceCache.
type mapPriceCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMapPriceCache() *mapPriceCache {
	return &mapPriceCache{entries: make(map[string]string)}
}

func (c *mapPriceCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapPriceCache) Set(key, priceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = priceID
}

func (c *mapPriceCache) Snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.entries)
}

// memoryPriceStore is a domain.PriceStore that counts saves.
type memoryPriceStore struct {
	mu      sync.Mutex
	prices  map[string]string
	saves   int
	loadErr error
}

func (s *memoryPriceStore) Load(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return copyMap(s.prices), nil
}

func (s *memoryPriceStore) Save(_ context.Context, prices map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.prices = copyMap(prices)
	return nil
}

// staticPlans resolves every user to a fixed plan.
type staticPlans map[string]domain.PlanInfo

func (s staticPlans) ResolvePlan(_ context.Context, userID string) domain.PlanInfo {
	if info, ok := s[userID]; ok {
		return info
	}
	return domain.DefaultPlanInfo()
}

func activePlan(plan domain.Plan) domain.PlanInfo {
	interval := domain.IntervalMonth
	return domain.PlanInfo{Plan: plan, Interval: &interval, Status: "active"}
}

type fakeText struct {
	mu      sync.Mutex
	prompts []string
	chunks  []string
	err     error
}

func (f *fakeText) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return strings.Join(f.chunks, ""), nil
}

func (f *fakeText) Stream(_ context.Context, prompt string, emit func(string) error) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	chunks, err := f.chunks, f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

type fakeImages struct {
	mu       sync.Mutex
	requests []domain.ImageRequest
	err      error
}

func (f *fakeImages) GenerateImages(_ context.Context, req domain.ImageRequest) ([]domain.GeneratedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.GeneratedImage{{MimeType: "image/png", Data: []byte("png")}}, nil
}
