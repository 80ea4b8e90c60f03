package domain

// Plan is an immutable catalog entry describing a paid subscription tier.
type Plan struct {
	Code           string
	Name           string
	MaxListings    int
	PriceMonthly   float64
	PriceSemestral float64
	PriceYearly    float64
}

// CheapestPlanFor picks the cheapest plan whose quota covers count, used
// for the upgrade hint shown to hosts without entitlement. When no plan is
// large enough it falls back to the biggest one. Returns nil for an empty
// catalog.
func CheapestPlanFor(plans []Plan, count int) *Plan {
	var covering *Plan
	var largest *Plan
	for i := range plans {
		plan := &plans[i]
		if largest == nil || plan.MaxListings > largest.MaxListings {
			largest = plan
		}
		if plan.MaxListings < count {
			continue
		}
		if covering == nil || plan.PriceMonthly < covering.PriceMonthly {
			covering = plan
		}
	}
	if covering != nil {
		return covering
	}
	return largest
}
