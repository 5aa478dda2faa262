package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plan-gate-server/internal/domain"
)

func newProvisioningCatalog(static map[string]string, store *memoryPriceStore) (*PriceCatalog, *fakeProvider, *mapPriceCache) {
	provider := newFakeProvider()
	cache := newMapPriceCache()
	logger := NewMockLogger()
	provisioner := NewPriceProvisioner(provider, "BoilerKitt", "usd", logger)
	var s domain.PriceStore
	if store != nil {
		s = store
	}
	return NewPriceCatalog(static, cache, s, provisioner, logger), provider, cache
}

func TestPriceCatalog_StaticConfigWins(t *testing.T) {
	catalog, provider, _ := newProvisioningCatalog(map[string]string{"pro_month": "price_env"}, nil)

	id, err := catalog.PriceIDFor(context.Background(), domain.PlanPro, domain.IntervalMonth)

	require.NoError(t, err)
	assert.Equal(t, "price_env", id)
	assert.Zero(t, provider.productLists)
}

func TestPriceCatalog_RejectsUnpurchasablePairs(t *testing.T) {
	catalog, _, _ := newProvisioningCatalog(nil, nil)
	ctx := context.Background()

	_, err := catalog.PriceIDFor(ctx, domain.PlanFree, domain.IntervalMonth)
	assert.ErrorIs(t, err, domain.ErrInvalidPlanSelection)

	_, err = catalog.PriceIDFor(ctx, domain.PlanPro, "week")
	assert.ErrorIs(t, err, domain.ErrInvalidPlanSelection)
}

func TestPriceCatalog_StoreWarmsCache(t *testing.T) {
	store := &memoryPriceStore{prices: map[string]string{"legendary_year": "price_ly", "pro_month": "price_pm"}}
	catalog, provider, cache := newProvisioningCatalog(nil, store)

	id, err := catalog.PriceIDFor(context.Background(), domain.PlanLegendary, domain.IntervalYear)

	require.NoError(t, err)
	assert.Equal(t, "price_ly", id)
	cached, ok := cache.Get("pro_month")
	assert.True(t, ok)
	assert.Equal(t, "price_pm", cached)
	assert.Zero(t, provider.productLists)
}

func TestPriceCatalog_ProvisionsFullCatalogOnce(t *testing.T) {
	store := &memoryPriceStore{}
	catalog, provider, _ := newProvisioningCatalog(nil, store)
	ctx := context.Background()

	id, err := catalog.PriceIDFor(ctx, domain.PlanPro, domain.IntervalYear)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, 2, provider.createdProducts)
	assert.Equal(t, 4, provider.createdPrices)
	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.prices, 4)

	for _, plan := range domain.PaidPlans {
		for _, interval := range domain.Intervals {
			_, err := catalog.PriceIDFor(ctx, plan, interval)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 4, provider.createdPrices, "second lookups must hit the cache")
	assert.Equal(t, 1, store.saves)

	names := []string{provider.products[0].Name, provider.products[1].Name}
	assert.ElementsMatch(t, []string{"BoilerKitt PRO", "BoilerKitt LEGENDARY"}, names)
	assert.Equal(t, ProvisionSource, provider.products[0].Metadata["source"])
}

func TestPriceCatalog_ReusesExistingProviderObjects(t *testing.T) {
	catalog, provider, _ := newProvisioningCatalog(nil, nil)
	provider.products = []domain.BillingProduct{{ID: "prod_pro", Name: "BoilerKitt PRO"}}
	provider.prices["prod_pro"] = []domain.BillingPrice{
		{ID: "price_wrong_amount", Interval: domain.IntervalMonth, UnitAmount: 999, ProductID: "prod_pro"},
		{ID: "price_pro_month", Interval: domain.IntervalMonth, UnitAmount: 1900, ProductID: "prod_pro"},
	}

	id, err := catalog.PriceIDFor(context.Background(), domain.PlanPro, domain.IntervalMonth)

	require.NoError(t, err)
	assert.Equal(t, "price_pro_month", id)
	assert.Equal(t, 1, provider.createdProducts, "only the legendary product is missing")
	assert.Equal(t, 3, provider.createdPrices)
}

func TestPriceCatalog_FailedProvisioningCachesNothing(t *testing.T) {
	store := &memoryPriceStore{}
	catalog, provider, cache := newProvisioningCatalog(nil, store)
	provider.failWith = errors.New("stripe down")

	_, err := catalog.PriceIDFor(context.Background(), domain.PlanPro, domain.IntervalMonth)

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Empty(t, cache.Snapshot())
	assert.Zero(t, store.saves)

	provider.failWith = nil
	id, err := catalog.PriceIDFor(context.Background(), domain.PlanPro, domain.IntervalMonth)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestPriceCatalog_NoProvisionerIsUnavailable(t *testing.T) {
	catalog := NewPriceCatalog(nil, newMapPriceCache(), nil, nil, NewMockLogger())

	_, err := catalog.PriceIDFor(context.Background(), domain.PlanPro, domain.IntervalMonth)

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestPriceCatalog_ConcurrentFirstLookups(t *testing.T) {
	catalog, provider, _ := newProvisioningCatalog(nil, nil)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := catalog.PriceIDFor(context.Background(), domain.PlanLegendary, domain.IntervalMonth)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 4, provider.createdPrices)
}

func TestPriceCatalog_RoundTrip(t *testing.T) {
	store := &memoryPriceStore{}
	catalog, _, _ := newProvisioningCatalog(map[string]string{"pro_month": "price_env_pm"}, store)
	ctx := context.Background()

	for _, plan := range domain.PaidPlans {
		for _, interval := range domain.Intervals {
			id, err := catalog.PriceIDFor(ctx, plan, interval)
			require.NoError(t, err)

			pi, ok := catalog.PlanIntervalFromPriceID(ctx, id)
			require.True(t, ok, "reverse lookup for %s", id)
			assert.Equal(t, domain.PlanInterval{Plan: plan, Interval: interval}, pi)
		}
	}

	_, ok := catalog.PlanIntervalFromPriceID(ctx, "price_unknown")
	assert.False(t, ok)
	_, ok = catalog.PlanIntervalFromPriceID(ctx, "")
	assert.False(t, ok)
}

func TestPriceCatalog_ReverseLookupFromStoreOnly(t *testing.T) {
	store := &memoryPriceStore{prices: map[string]string{"legendary_month": "price_lm"}}
	catalog := NewPriceCatalog(nil, newMapPriceCache(), store, nil, NewMockLogger())

	pi, ok := catalog.PlanIntervalFromPriceID(context.Background(), "price_lm")

	require.True(t, ok)
	assert.Equal(t, domain.PlanLegendary, pi.Plan)
	assert.Equal(t, domain.IntervalMonth, pi.Interval)
}
