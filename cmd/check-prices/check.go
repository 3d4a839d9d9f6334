package main

import (
	"strings"

	"github.com/stripe/stripe-go/v79"

	"github.com/pcoptimize/pcoptimize-backend/internal/catalog"
)

type problem string

const (
	problemPlaceholder      problem = "placeholder"
	problemMissing          problem = "missing_or_inactive"
	problemCurrencyMismatch problem = "currency_mismatch"
	problemNotOneTime       problem = "not_one_time"
)

type finding struct {
	catalog.StripePrice
	Problem problem
}

// checkPrices compares catalog entries with the account's active prices.
func checkPrices(entries []catalog.StripePrice, active map[string]*stripe.Price) []finding {
	var findings []finding
	for _, entry := range entries {
		if entry.PriceID == "" || catalog.IsPlaceholder(entry.PriceID) {
			findings = append(findings, finding{entry, problemPlaceholder})
			continue
		}

		p, ok := active[entry.PriceID]
		if !ok {
			findings = append(findings, finding{entry, problemMissing})
			continue
		}
		if !strings.EqualFold(string(p.Currency), entry.Currency) {
			findings = append(findings, finding{entry, problemCurrencyMismatch})
			continue
		}
		if p.Type != "" && p.Type != stripe.PriceTypeOneTime {
			findings = append(findings, finding{entry, problemNotOneTime})
		}
	}
	return findings
}
