package service

import (
	"context"
	"fmt"

	"plan-gate-server/internal/domain"
)

// ProvisionSource tags products created by the provisioner.
const ProvisionSource = "plan-gate-autocreate"

// DefaultAmounts are the unit amounts, in the smallest currency unit, used
// when a price has to be created.
var DefaultAmounts = map[string]int64{
	domain.PriceKey(domain.PlanPro, domain.IntervalMonth):       1900,
	domain.PriceKey(domain.PlanPro, domain.IntervalYear):        19000,
	domain.PriceKey(domain.PlanLegendary, domain.IntervalMonth): 4900,
	domain.PriceKey(domain.PlanLegendary, domain.IntervalYear):  49000,
}

// Provisioner fills in missing catalog entries.
type Provisioner interface {
	Ensure(ctx context.Context, existing map[string]string) (map[string]string, error)
}

// PriceProvisioner finds or creates the paid products and their recurring
// prices in the billing provider.
type PriceProvisioner struct {
	provider domain.BillingProvider
	prefix   string
	currency string
	amounts  map[string]int64
	logger   domain.Logger
}

func NewPriceProvisioner(provider domain.BillingProvider, prefix, currency string, logger domain.Logger) *PriceProvisioner {
	return &PriceProvisioner{
		provider: provider,
		prefix:   prefix,
		currency: currency,
		amounts:  DefaultAmounts,
		logger:   logger,
	}
}

// ProductName is the exact product name looked up for a tier.
func (p *PriceProvisioner) ProductName(plan domain.Plan) string {
	if p.prefix == "" {
		return plan.Label()
	}
	return p.prefix + " " + plan.Label()
}

// Ensure returns a complete map of the four catalog keys. Entries already
// present in existing are kept as they are.
func (p *PriceProvisioner) Ensure(ctx context.Context, existing map[string]string) (map[string]string, error) {
	prices := make(map[string]string, len(DefaultAmounts))
	for k, v := range existing {
		if v != "" {
			prices[k] = v
		}
	}

	var products []domain.BillingProduct
	for _, plan := range domain.PaidPlans {
		if hasAllIntervals(prices, plan) {
			continue
		}

		if products == nil {
			list, err := p.provider.ListActiveProducts(ctx)
			if err != nil {
				return nil, err
			}
			products = list
		}

		productID, err := p.ensureProduct(ctx, products, plan)
		if err != nil {
			return nil, err
		}

		for _, interval := range domain.Intervals {
			key := domain.PriceKey(plan, interval)
			if prices[key] != "" {
				continue
			}
			priceID, err := p.ensurePrice(ctx, productID, plan, interval)
			if err != nil {
				return nil, err
			}
			prices[key] = priceID
		}
	}

	return prices, nil
}

func (p *PriceProvisioner) ensureProduct(ctx context.Context, products []domain.BillingProduct, plan domain.Plan) (string, error) {
	name := p.ProductName(plan)
	for _, prod := range products {
		if prod.Name == name {
			return prod.ID, nil
		}
	}

	created, err := p.provider.CreateProduct(ctx, name, map[string]string{
		"tier":   string(plan),
		"source": ProvisionSource,
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("Created billing product", "product_id", created.ID, "name", name)
	return created.ID, nil
}

func (p *PriceProvisioner) ensurePrice(ctx context.Context, productID string, plan domain.Plan, interval domain.Interval) (string, error) {
	key := domain.PriceKey(plan, interval)
	amount, ok := p.amounts[key]
	if !ok {
		return "", fmt.Errorf("%w: no amount for %s", domain.ErrInvalidPlanSelection, key)
	}

	existing, err := p.provider.ListActivePrices(ctx, productID)
	if err != nil {
		return "", err
	}
	for _, price := range existing {
		if price.Interval == interval && price.UnitAmount == amount {
			return price.ID, nil
		}
	}

	created, err := p.provider.CreatePrice(ctx, domain.PriceSpec{
		ProductID:  productID,
		Currency:   p.currency,
		UnitAmount: amount,
		Interval:   interval,
		Nickname:   plan.Label() + " " + string(interval),
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("Created billing price", "price_id", created.ID, "key", key)
	return created.ID, nil
}

func hasAllIntervals(prices map[string]string, plan domain.Plan) bool {
	for _, interval := range domain.Intervals {
		if prices[domain.PriceKey(plan, interval)] == "" {
			return false
		}
	}
	return true
}
