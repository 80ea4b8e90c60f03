package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	"github.com/hostfolio/hostfolio/internal/billing/infrastructure/persistence"
)

type pricingFixture struct {
	pricing *PricingService
	coupons *persistence.MemoryCouponRepository
	now     time.Time
}

func newPricingFixture(t *testing.T) *pricingFixture {
	t.Helper()
	tiers, err := persistence.NewStaticTierRepository(persistence.DefaultTiers())
	require.NoError(t, err)

	f := &pricingFixture{
		coupons: persistence.NewMemoryCouponRepository(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.pricing = NewPricingService(tiers, f.coupons)
	f.pricing.now = func() time.Time { return f.now }
	return f
}

func (f *pricingFixture) addCoupon(code string, rule domain.CouponRule, mutate func(*domain.Coupon)) *domain.Coupon {
	c := &domain.Coupon{
		ID:        uuid.New(),
		Code:      code,
		Rule:      rule,
		ValidFrom: f.now.Add(-time.Hour),
		Active:    true,
	}
	if mutate != nil {
		mutate(c)
	}
	f.coupons.Put(c)
	return c
}

func TestQuote_NoCoupon(t *testing.T) {
	f := newPricingFixture(t)

	quote, err := f.pricing.Quote(context.Background(), uuid.New(), 3, 1, "", "")
	require.NoError(t, err)

	assert.Equal(t, 2.50, quote.PricePerListing)
	assert.Equal(t, 7.50, quote.BaseAmount)
	assert.Equal(t, 7.50, quote.FinalAmount)
	assert.Empty(t, quote.CouponCode)
}

func TestQuote_TierBoundary(t *testing.T) {
	f := newPricingFixture(t)

	quote, err := f.pricing.Quote(context.Background(), uuid.New(), 6, 1, "", "")
	require.NoError(t, err)

	assert.Equal(t, 2.20, quote.PricePerListing)
	assert.Equal(t, 13.20, quote.BaseAmount)
}

func TestQuote_PercentageCoupon(t *testing.T) {
	f := newPricingFixture(t)
	f.addCoupon("WELCOME10", domain.PercentageRule{Percent: 10}, nil)

	quote, err := f.pricing.Quote(context.Background(), uuid.New(), 3, 1, "welcome10", "")
	require.NoError(t, err)

	assert.Equal(t, 7.50, quote.BaseAmount)
	assert.Equal(t, 0.75, quote.DiscountAmount)
	assert.Equal(t, 6.75, quote.FinalAmount)
	assert.Equal(t, "WELCOME10", quote.CouponCode)
}

func TestQuote_UnknownCoupon(t *testing.T) {
	f := newPricingFixture(t)

	_, err := f.pricing.Quote(context.Background(), uuid.New(), 3, 1, "NOPE", "")
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

func TestQuote_CouponValidatedAgainstOrder(t *testing.T) {
	f := newPricingFixture(t)
	f.addCoupon("BIGSPENDER", domain.PercentageRule{Percent: 20}, func(c *domain.Coupon) {
		c.MinAmount = 10.00
	})

	// 3 listings x 1 month = 7.50, below the coupon minimum.
	_, err := f.pricing.Quote(context.Background(), uuid.New(), 3, 1, "BIGSPENDER", "")
	assert.ErrorIs(t, err, domain.ErrCouponMinAmount)

	// 3 listings x 2 months = 15.00 clears it.
	quote, err := f.pricing.Quote(context.Background(), uuid.New(), 3, 2, "BIGSPENDER", "")
	require.NoError(t, err)
	assert.Equal(t, 3.00, quote.DiscountAmount)
	assert.Equal(t, 12.00, quote.FinalAmount)
}

func TestQuote_PlanScopedCoupon(t *testing.T) {
	f := newPricingFixture(t)
	f.addCoupon("PROONLY", domain.PercentageRule{Percent: 15}, func(c *domain.Coupon) {
		c.ApplicablePlans = []string{"pro"}
	})

	_, err := f.pricing.Quote(context.Background(), uuid.New(), 3, 1, "PROONLY", "starter")
	assert.ErrorIs(t, err, domain.ErrCouponPlanScope)

	_, err = f.pricing.Quote(context.Background(), uuid.New(), 3, 1, "PROONLY", "pro")
	assert.NoError(t, err)
}

func TestQuote_HostUsageLimit(t *testing.T) {
	f := newPricingFixture(t)
	hostID := uuid.New()
	coupon := f.addCoupon("ONCE", domain.PercentageRule{Percent: 10}, func(c *domain.Coupon) {
		c.MaxUsesPerHost = 1
	})

	use := domain.NewCouponUse(coupon.ID, hostID, uuid.New(), 0.75, 7.50, 6.75)
	require.NoError(t, f.coupons.ConsumeUse(context.Background(), coupon.ID, use))

	_, err := f.pricing.Quote(context.Background(), hostID, 3, 1, "ONCE", "")
	assert.ErrorIs(t, err, domain.ErrCouponHostLimit)

	// A different host is unaffected.
	_, err = f.pricing.Quote(context.Background(), uuid.New(), 3, 1, "ONCE", "")
	assert.NoError(t, err)
}

func TestQuote_CustomPlanCoupon(t *testing.T) {
	f := newPricingFixture(t)
	f.addCoupon("ENTERPRISE", domain.CustomPlanRule{}, nil)

	quote, err := f.pricing.Quote(context.Background(), uuid.New(), 40, 12, "ENTERPRISE", "")
	require.NoError(t, err)

	assert.True(t, quote.RequiresManualReview)
	assert.Zero(t, quote.FinalAmount)
}

func TestQuoteWithCoupon_ReturnsCoupon(t *testing.T) {
	f := newPricingFixture(t)
	added := f.addCoupon("WELCOME10", domain.PercentageRule{Percent: 10}, nil)

	quote, coupon, err := f.pricing.QuoteWithCoupon(context.Background(), uuid.New(), 3, 1, "WELCOME10", "")
	require.NoError(t, err)
	require.NotNil(t, coupon)

	assert.Equal(t, added.ID, coupon.ID)
	assert.Equal(t, 6.75, quote.FinalAmount)

	_, coupon, err = f.pricing.QuoteWithCoupon(context.Background(), uuid.New(), 3, 1, "", "")
	require.NoError(t, err)
	assert.Nil(t, coupon)
}

func TestQuote_InvalidCount(t *testing.T) {
	f := newPricingFixture(t)

	_, err := f.pricing.Quote(context.Background(), uuid.New(), 0, 1, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCount)
}
