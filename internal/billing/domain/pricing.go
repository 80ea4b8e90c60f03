package domain

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrEmptyTierTable    = errors.New("pricing tier table is empty")
	ErrTierGapOrOverlap  = errors.New("pricing tiers must partition the positive integers")
	ErrNoTierForCount    = errors.New("no pricing tier covers the listing count")
	ErrInvalidCount      = errors.New("listing count must be positive")
	ErrInvalidDuration   = errors.New("duration must be at least one month")
)

// PricingTier is one bracket of per-listing pricing. A nil MaxListings
// means the bracket is unbounded.
type PricingTier struct {
	MinListings     int
	MaxListings     *int
	PricePerListing float64
}

// Contains reports whether the tier's range covers count.
func (t PricingTier) Contains(count int) bool {
	if count < t.MinListings {
		return false
	}
	return t.MaxListings == nil || count <= *t.MaxListings
}

// TierTable is the ordered set of pricing tiers. Tiers partition the
// positive integers with no gaps or overlaps.
type TierTable struct {
	tiers []PricingTier
}

// NewTierTable validates and builds a tier table.
func NewTierTable(tiers []PricingTier) (TierTable, error) {
	if len(tiers) == 0 {
		return TierTable{}, ErrEmptyTierTable
	}

	sorted := make([]PricingTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinListings < sorted[j].MinListings })

	next := 1
	for i, tier := range sorted {
		if tier.MinListings != next {
			return TierTable{}, ErrTierGapOrOverlap
		}
		if tier.MaxListings == nil {
			if i != len(sorted)-1 {
				return TierTable{}, ErrTierGapOrOverlap
			}
			next = math.MaxInt
			continue
		}
		if *tier.MaxListings < tier.MinListings {
			return TierTable{}, ErrTierGapOrOverlap
		}
		next = *tier.MaxListings + 1
	}
	if next != math.MaxInt {
		return TierTable{}, ErrTierGapOrOverlap
	}

	return TierTable{tiers: sorted}, nil
}

// Tiers returns the ordered tiers.
func (t TierTable) Tiers() []PricingTier { return t.tiers }

// PriceFor returns the per-listing price of the tier covering count.
func (t TierTable) PriceFor(count int) (float64, error) {
	if count < 1 {
		return 0, ErrInvalidCount
	}
	for _, tier := range t.tiers {
		if tier.Contains(count) {
			return tier.PricePerListing, nil
		}
	}
	return 0, ErrNoTierForCount
}

// QuoteBreakdown is the deterministic price breakdown for one billing cycle.
type QuoteBreakdown struct {
	ListingCount         int     `json:"listing_count"`
	DurationMonths       int     `json:"duration_months"`
	PricePerListing      float64 `json:"price_per_listing"`
	BaseAmount           float64 `json:"base_amount"`
	DiscountAmount       float64 `json:"discount_amount"`
	FinalAmount          float64 `json:"final_amount"`
	FreeMonthsGranted    int     `json:"free_months_granted,omitempty"`
	RequiresManualReview bool    `json:"requires_manual_review,omitempty"`
	CouponCode           string  `json:"coupon_code,omitempty"`
}

// ComputeQuote prices count billable listings for months at the given
// per-listing price, applying an optional coupon rule. It is pure: no
// repository access, no side effects.
func ComputeQuote(count, months int, pricePerListing float64, rule CouponRule) (QuoteBreakdown, error) {
	if count < 1 {
		return QuoteBreakdown{}, ErrInvalidCount
	}
	if months < 1 {
		return QuoteBreakdown{}, ErrInvalidDuration
	}

	base := roundCents(pricePerListing * float64(count) * float64(months))
	quote := QuoteBreakdown{
		ListingCount:    count,
		DurationMonths:  months,
		PricePerListing: pricePerListing,
		BaseAmount:      base,
		FinalAmount:     base,
	}
	if rule == nil {
		return quote, nil
	}

	switch r := rule.(type) {
	case PercentageRule:
		quote.DiscountAmount = roundCents(base * r.Percent / 100)
		quote.FinalAmount = roundCents(math.Max(0, base-quote.DiscountAmount))
	case FixedAmountRule:
		quote.DiscountAmount = roundCents(math.Min(r.Amount, base))
		quote.FinalAmount = roundCents(base - quote.DiscountAmount)
	case FreeMonthsRule:
		// The grant extends a future renewal; the current cycle's payable
		// amount is unchanged and the discount is informational.
		quote.FreeMonthsGranted = r.Months
		quote.DiscountAmount = roundCents(pricePerListing * float64(count) * float64(r.Months))
		quote.FinalAmount = base
	case CustomPlanRule:
		// No numeric quote; an operator takes over.
		return QuoteBreakdown{
			ListingCount:         count,
			DurationMonths:       months,
			RequiresManualReview: true,
		}, nil
	default:
		return QuoteBreakdown{}, ErrUnknownCouponKind
	}

	return quote, nil
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
