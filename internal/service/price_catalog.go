package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"plan-gate-server/internal/domain"
	"plan-gate-server/internal/metrics"
)

// PriceCatalog maps (plan, interval) to provider price ids and back.
// Lookup order: static configuration, process cache, durable store, then
// lazy provisioning.
type PriceCatalog struct {
	static      map[string]string
	cache       domain.PriceCache
	store       domain.PriceStore
	provisioner Provisioner
	group       singleflight.Group
	logger      domain.Logger
}

// NewPriceCatalog builds a catalog. store may be nil when the durable cache
// is read-only or absent; provisioner may be nil when no provider is
// configured.
func NewPriceCatalog(
	static map[string]string,
	cache domain.PriceCache,
	store domain.PriceStore,
	provisioner Provisioner,
	logger domain.Logger,
) *PriceCatalog {
	s := make(map[string]string, len(static))
	for k, v := range static {
		if v != "" {
			s[k] = v
		}
	}
	return &PriceCatalog{
		static:      s,
		cache:       cache,
		store:       store,
		provisioner: provisioner,
		logger:      logger,
	}
}

// PriceIDFor returns the price id for a purchasable plan/interval pair.
func (c *PriceCatalog) PriceIDFor(ctx context.Context, plan domain.Plan, interval domain.Interval) (string, error) {
	if _, ok := domain.ParsePaidPlan(string(plan)); !ok {
		return "", fmt.Errorf("%w: plan %q", domain.ErrInvalidPlanSelection, plan)
	}
	if _, ok := domain.ParseInterval(string(interval)); !ok {
		return "", fmt.Errorf("%w: interval %q", domain.ErrInvalidPlanSelection, interval)
	}
	key := domain.PriceKey(plan, interval)

	if id := c.static[key]; id != "" {
		metrics.PriceLookupsTotal.WithLabelValues("config").Inc()
		return id, nil
	}
	if id, ok := c.cache.Get(key); ok && id != "" {
		metrics.PriceLookupsTotal.WithLabelValues("cache").Inc()
		return id, nil
	}
	if prices := c.loadStore(ctx); prices[key] != "" {
		metrics.PriceLookupsTotal.WithLabelValues("store").Inc()
		return prices[key], nil
	}

	if c.provisioner == nil {
		metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: no price for %s and provisioning is disabled", domain.ErrProviderUnavailable, key)
	}

	// Concurrent first requests share one provisioning run. The run is
	// detached from the caller so one disconnect does not fail the others.
	v, err, _ := c.group.Do("provision", func() (interface{}, error) {
		return c.provision(context.WithoutCancel(ctx))
	})
	if err != nil {
		metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return "", err
	}

	id := v.(map[string]string)[key]
	if id == "" {
		metrics.PriceLookupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: provisioning returned no price for %s", domain.ErrProviderUnavailable, key)
	}
	metrics.PriceLookupsTotal.WithLabelValues("provisioned").Inc()
	return id, nil
}

// PlanIntervalFromPriceID reverse-maps a price id using only local
// sources. ok is false for unknown ids.
func (c *PriceCatalog) PlanIntervalFromPriceID(ctx context.Context, priceID string) (domain.PlanInterval, bool) {
	if priceID == "" {
		return domain.PlanInterval{}, false
	}
	if pi, ok := reverseLookup(c.static, priceID); ok {
		return pi, true
	}
	if pi, ok := reverseLookup(c.cache.Snapshot(), priceID); ok {
		return pi, true
	}
	return reverseLookup(c.loadStore(ctx), priceID)
}

// loadStore reads the durable cache and warms the process cache from it.
func (c *PriceCatalog) loadStore(ctx context.Context) map[string]string {
	if c.store == nil {
		return nil
	}
	prices, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("Price store unavailable", "error", err)
		return nil
	}
	for k, v := range prices {
		if _, _, ok := domain.ParsePriceKey(k); ok && v != "" {
			c.cache.Set(k, v)
		}
	}
	return prices
}

func (c *PriceCatalog) provision(ctx context.Context) (map[string]string, error) {
	existing := make(map[string]string, len(c.static))
	for k, v := range c.cache.Snapshot() {
		existing[k] = v
	}
	for k, v := range c.static {
		existing[k] = v
	}

	prices, err := c.provisioner.Ensure(ctx, existing)
	if err != nil {
		c.logger.Error("Price provisioning failed", err)
		return nil, err
	}

	for k, v := range prices {
		c.cache.Set(k, v)
	}
	if c.store != nil {
		if err := c.store.Save(ctx, prices); err != nil {
			c.logger.Warn("Failed to persist provisioned prices", "error", err)
		}
	}
	c.logger.Info("Provisioned price catalog", "entries", len(prices))
	return prices, nil
}

func reverseLookup(prices map[string]string, priceID string) (domain.PlanInterval, bool) {
	for key, id := range prices {
		if id != priceID {
			continue
		}
		if plan, interval, ok := domain.ParsePriceKey(key); ok {
			return domain.PlanInterval{Plan: plan, Interval: interval}, true
		}
	}
	return domain.PlanInterval{}, false
}
