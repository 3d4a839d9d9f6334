// Package catalog holds plan names and provider prices.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// placeholderMarker marks a Stripe price id that was never provisioned.
const placeholderMarker = "PLACEHOLDER"

const fallbackName = "PCOptimize"

// Plan is one catalog entry.
type Plan struct {
	Name         string                   `yaml:"name"`
	PayPalUSD    map[entity.Region]string `yaml:"paypal_usd"`
	StripePrices map[string]string        `yaml:"stripe_prices"`
}

// Catalog maps plans to their display name and prices.
type Catalog struct {
	Plans map[entity.PlanID]*Plan `yaml:"plans"`

	paypal map[entity.PlanID]map[entity.Region]decimal.Decimal
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c.paypal = make(map[entity.PlanID]map[entity.Region]decimal.Decimal, len(c.Plans))
	for planID, plan := range c.Plans {
		if _, ok := entity.ParsePlanID(string(planID)); !ok {
			return nil, fmt.Errorf("catalog: unknown plan %q", planID)
		}
		if plan == nil {
			plan = &Plan{}
			c.Plans[planID] = plan
		}

		prices := make(map[entity.Region]decimal.Decimal, len(plan.PayPalUSD))
		for region, value := range plan.PayPalUSD {
			if _, ok := entity.ParseRegion(string(region)); !ok {
				return nil, fmt.Errorf("catalog: plan %s has unknown region %q", planID, region)
			}
			amount, err := decimal.NewFromString(value)
			if err != nil || !amount.IsPositive() {
				return nil, fmt.Errorf("catalog: plan %s region %s has invalid price %q", planID, region, value)
			}
			prices[region] = amount
		}
		c.paypal[planID] = prices

		normalized := make(map[string]string, len(plan.StripePrices))
		for currency, priceID := range plan.StripePrices {
			normalized[strings.ToUpper(currency)] = priceID
		}
		plan.StripePrices = normalized
	}

	return &c, nil
}

// DisplayName returns the product name shown to payers. Legacy plans use the basic name.
func (c *Catalog) DisplayName(planID entity.PlanID) string {
	if plan, ok := c.Plans[planID.Active()]; ok && plan.Name != "" {
		return plan.Name
	}
	return fallbackName
}

// PayPalPrice returns the USD price of a plan in a region.
func (c *Catalog) PayPalPrice(planID entity.PlanID, region entity.Region) (decimal.Decimal, bool) {
	amount, ok := c.paypal[planID][region]
	return amount, ok
}

// StripePriceID returns the provisioned price id for a plan and currency.
// Missing entries and placeholders both report false.
func (c *Catalog) StripePriceID(planID entity.PlanID, currency string) (string, bool) {
	plan, ok := c.Plans[planID]
	if !ok {
		return "", false
	}
	priceID := plan.StripePrices[strings.ToUpper(currency)]
	if priceID == "" || IsPlaceholder(priceID) {
		return priceID, false
	}
	return priceID, true
}

// OverrideStripePrices replaces Stripe price ids, keyed plan then currency.
func (c *Catalog) OverrideStripePrices(overrides map[string]map[string]string) error {
	for planKey, prices := range overrides {
		planID, ok := entity.ParsePlanID(strings.ToLower(planKey))
		if !ok {
			return fmt.Errorf("catalog: price override for unknown plan %q", planKey)
		}
		plan, ok := c.Plans[planID]
		if !ok {
			plan = &Plan{StripePrices: map[string]string{}}
			c.Plans[planID] = plan
		}
		if plan.StripePrices == nil {
			plan.StripePrices = map[string]string{}
		}
		for currency, priceID := range prices {
			code := strings.ToUpper(currency)
			if !entity.IsValidCurrency(code) {
				return fmt.Errorf("catalog: price override for unknown currency %q", currency)
			}
			plan.StripePrices[code] = priceID
		}
	}
	return nil
}

// StripePrice is one catalog price id with its plan and currency.
type StripePrice struct {
	Plan     entity.PlanID
	Currency string
	PriceID  string
}

// StripePrices lists every Stripe entry in plan and currency allow-list order.
func (c *Catalog) StripePrices() []StripePrice {
	var out []StripePrice
	for _, planID := range entity.ValidPlans {
		plan, ok := c.Plans[planID]
		if !ok {
			continue
		}
		for _, currency := range entity.ValidCurrencies {
			out = append(out, StripePrice{Plan: planID, Currency: currency, PriceID: plan.StripePrices[currency]})
		}
	}
	return out
}

// IsPlaceholder reports whether a price id was never provisioned.
func IsPlaceholder(priceID string) bool {
	return strings.Contains(priceID, placeholderMarker)
}
