package entity

// PlanID identifies a service plan.
type PlanID string

const (
	PlanBasic PlanID = "basic"
	PlanGamer PlanID = "gamer"
	// PlanPremium is a legacy plan. It is accepted and stored but never sold as such.
	PlanPremium PlanID = "premium"
)

// ValidPlans is the plan allow-list for order creation.
var ValidPlans = []PlanID{PlanBasic, PlanGamer, PlanPremium}

// ParsePlanID returns the plan for s and whether it is in the allow-list.
func ParsePlanID(s string) (PlanID, bool) {
	for _, p := range ValidPlans {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Active maps a stored plan onto one that is currently offered.
func (p PlanID) Active() PlanID {
	if p == PlanGamer {
		return PlanGamer
	}
	return PlanBasic
}

// PlanFromMetadata parses plan metadata carried by a provider, defaulting to basic.
func PlanFromMetadata(s string) PlanID {
	if p, ok := ParsePlanID(s); ok {
		return p
	}
	return PlanBasic
}

// Region selects the PayPal price list.
type Region string

const (
	RegionLatam         Region = "latam"
	RegionInternational Region = "international"
)

// ValidRegions is the PayPal region allow-list.
var ValidRegions = []Region{RegionLatam, RegionInternational}

// ParseRegion returns the region for s and whether it is allowed.
func ParseRegion(s string) (Region, bool) {
	for _, r := range ValidRegions {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// ValidCurrencies is the Stripe checkout currency allow-list.
var ValidCurrencies = []string{"USD", "COP", "MXN", "ARS", "CLP", "PEN", "EUR"}

// IsValidCurrency reports whether code is an accepted checkout currency.
func IsValidCurrency(code string) bool {
	for _, c := range ValidCurrencies {
		if c == code {
			return true
		}
	}
	return false
}
