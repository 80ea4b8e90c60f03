package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func testTiers(t *testing.T) TierTable {
	t.Helper()
	table, err := NewTierTable([]PricingTier{
		{MinListings: 1, MaxListings: intPtr(5), PricePerListing: 2.50},
		{MinListings: 6, MaxListings: intPtr(20), PricePerListing: 2.20},
		{MinListings: 21, PricePerListing: 1.80},
	})
	require.NoError(t, err)
	return table
}

func TestNewTierTable_Valid(t *testing.T) {
	table := testTiers(t)
	assert.Len(t, table.Tiers(), 3)
}

func TestNewTierTable_SortsInput(t *testing.T) {
	table, err := NewTierTable([]PricingTier{
		{MinListings: 6, PricePerListing: 2.20},
		{MinListings: 1, MaxListings: intPtr(5), PricePerListing: 2.50},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Tiers()[0].MinListings)
	assert.Equal(t, 6, table.Tiers()[1].MinListings)
}

func TestNewTierTable_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		tiers []PricingTier
		want  error
	}{
		{
			name:  "empty",
			tiers: nil,
			want:  ErrEmptyTierTable,
		},
		{
			name: "gap between tiers",
			tiers: []PricingTier{
				{MinListings: 1, MaxListings: intPtr(5), PricePerListing: 2.50},
				{MinListings: 7, PricePerListing: 2.20},
			},
			want: ErrTierGapOrOverlap,
		},
		{
			name: "overlapping tiers",
			tiers: []PricingTier{
				{MinListings: 1, MaxListings: intPtr(5), PricePerListing: 2.50},
				{MinListings: 5, PricePerListing: 2.20},
			},
			want: ErrTierGapOrOverlap,
		},
		{
			name: "does not start at one",
			tiers: []PricingTier{
				{MinListings: 2, PricePerListing: 2.50},
			},
			want: ErrTierGapOrOverlap,
		},
		{
			name: "unbounded tier not last",
			tiers: []PricingTier{
				{MinListings: 1, PricePerListing: 2.50},
				{MinListings: 6, MaxListings: intPtr(20), PricePerListing: 2.20},
			},
			want: ErrTierGapOrOverlap,
		},
		{
			name: "bounded final tier leaves tail uncovered",
			tiers: []PricingTier{
				{MinListings: 1, MaxListings: intPtr(5), PricePerListing: 2.50},
			},
			want: ErrTierGapOrOverlap,
		},
		{
			name: "max below min",
			tiers: []PricingTier{
				{MinListings: 1, MaxListings: intPtr(0), PricePerListing: 2.50},
			},
			want: ErrTierGapOrOverlap,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTierTable(tc.tiers)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPriceFor(t *testing.T) {
	table := testTiers(t)

	tests := []struct {
		count int
		want  float64
	}{
		{1, 2.50},
		{5, 2.50},
		{6, 2.20},
		{20, 2.20},
		{21, 1.80},
		{500, 1.80},
	}

	for _, tc := range tests {
		price, err := table.PriceFor(tc.count)
		require.NoError(t, err)
		assert.Equal(t, tc.want, price, "count %d", tc.count)
	}
}

func TestPriceFor_InvalidCount(t *testing.T) {
	table := testTiers(t)
	_, err := table.PriceFor(0)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestComputeQuote_NoCoupon(t *testing.T) {
	quote, err := ComputeQuote(3, 2, 2.50, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, quote.ListingCount)
	assert.Equal(t, 2, quote.DurationMonths)
	assert.Equal(t, 2.50, quote.PricePerListing)
	assert.Equal(t, 15.00, quote.BaseAmount)
	assert.Equal(t, 0.0, quote.DiscountAmount)
	assert.Equal(t, 15.00, quote.FinalAmount)
	assert.False(t, quote.RequiresManualReview)
}

func TestComputeQuote_PercentageCoupon(t *testing.T) {
	quote, err := ComputeQuote(3, 1, 2.50, PercentageRule{Percent: 10})
	require.NoError(t, err)

	assert.Equal(t, 7.50, quote.BaseAmount)
	assert.Equal(t, 0.75, quote.DiscountAmount)
	assert.Equal(t, 6.75, quote.FinalAmount)
}

func TestComputeQuote_FixedAmountClampedToBase(t *testing.T) {
	quote, err := ComputeQuote(1, 1, 2.50, FixedAmountRule{Amount: 10.00})
	require.NoError(t, err)

	assert.Equal(t, 2.50, quote.BaseAmount)
	assert.Equal(t, 2.50, quote.DiscountAmount)
	assert.Equal(t, 0.0, quote.FinalAmount)
}

func TestComputeQuote_FixedAmount(t *testing.T) {
	quote, err := ComputeQuote(4, 1, 2.50, FixedAmountRule{Amount: 3.00})
	require.NoError(t, err)

	assert.Equal(t, 10.00, quote.BaseAmount)
	assert.Equal(t, 3.00, quote.DiscountAmount)
	assert.Equal(t, 7.00, quote.FinalAmount)
}

func TestComputeQuote_FreeMonthsLeavesPayableUnchanged(t *testing.T) {
	quote, err := ComputeQuote(2, 3, 2.50, FreeMonthsRule{Months: 1})
	require.NoError(t, err)

	assert.Equal(t, 15.00, quote.BaseAmount)
	assert.Equal(t, 15.00, quote.FinalAmount)
	assert.Equal(t, 1, quote.FreeMonthsGranted)
	assert.Equal(t, 5.00, quote.DiscountAmount)
}

func TestComputeQuote_CustomPlanRequiresManualReview(t *testing.T) {
	quote, err := ComputeQuote(50, 12, 1.80, CustomPlanRule{})
	require.NoError(t, err)

	assert.True(t, quote.RequiresManualReview)
	assert.Equal(t, 50, quote.ListingCount)
	assert.Equal(t, 12, quote.DurationMonths)
	assert.Zero(t, quote.BaseAmount)
	assert.Zero(t, quote.FinalAmount)
}

func TestComputeQuote_InvalidInputs(t *testing.T) {
	_, err := ComputeQuote(0, 1, 2.50, nil)
	assert.ErrorIs(t, err, ErrInvalidCount)

	_, err = ComputeQuote(1, 0, 2.50, nil)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestComputeQuote_RoundsToCents(t *testing.T) {
	quote, err := ComputeQuote(3, 1, 2.50, PercentageRule{Percent: 33})
	require.NoError(t, err)

	assert.Equal(t, 2.48, quote.DiscountAmount)
	assert.Equal(t, 5.02, quote.FinalAmount)
}
