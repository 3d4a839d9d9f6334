package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
	"github.com/pcoptimize/pcoptimize-backend/internal/domain/entity"
)

func TestCheckPrices(t *testing.T) {
	entries := []catalog.StripePrice{
		{Plan: entity.PlanBasic, Currency: "USD", PriceID: "price_basic_usd"},
		{Plan: entity.PlanBasic, Currency: "CLP", PriceID: "price_basic_clp"},
		{Plan: entity.PlanGamer, Currency: "USD", PriceID: "price_gamer_usd"},
		{Plan: entity.PlanGamer, Currency: "CLP", PriceID: "price_gamer_clp"},
		{Plan: entity.PlanGamer, Currency: "MXN", PriceID: ""},
	}
	active := map[string]*stripe.Price{
		"price_basic_usd": {ID: "price_basic_usd", Currency: stripe.CurrencyUSD, Type: stripe.PriceTypeOneTime},
		"price_basic_clp": {ID: "price_basic_clp", Currency: stripe.CurrencyUSD, Type: stripe.PriceTypeOneTime},
		"price_gamer_clp": {ID: "price_gamer_clp", Currency: stripe.CurrencyCLP, Type: stripe.PriceTypeRecurring},
	}

	findings := checkPrices(entries, active)

	got := map[string]problem{}
	for _, f := range findings {
		got[string(f.Plan)+"/"+f.Currency] = f.Problem
	}
	assert.Equal(t, map[string]problem{
		"basic/CLP": problemCurrencyMismatch,
		"gamer/USD": problemMissing,
		"gamer/CLP": problemNotOneTime,
		"gamer/MXN": problemPlaceholder,
	}, got)
}

func TestCheckPrices_AllProvisioned(t *testing.T) {
	entries := []catalog.StripePrice{{Plan: entity.PlanBasic, Currency: "USD", PriceID: "price_1"}}
	active := map[string]*stripe.Price{"price_1": {ID: "price_1", Currency: "usd"}}

	assert.Empty(t, checkPrices(entries, active))
}
