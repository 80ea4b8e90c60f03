package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
)

// PricingService produces price quotes from the tier table and the coupon
// catalog. Quoting is read-only; redemption happens when a payment request
// is created.
type PricingService struct {
	tiers   domain.TierRepository
	coupons domain.CouponRepository
	now     func() time.Time
}

// NewPricingService creates a pricing service.
func NewPricingService(tiers domain.TierRepository, coupons domain.CouponRepository) *PricingService {
	return &PricingService{tiers: tiers, coupons: coupons, now: time.Now}
}

// Quote prices count billable listings for months, applying the coupon
// code when one is given. planCode scopes plan-restricted coupons; pass
// the host's current plan or empty when none.
func (s *PricingService) Quote(
	ctx context.Context,
	hostID uuid.UUID,
	count, months int,
	couponCode string,
	planCode string,
) (domain.QuoteBreakdown, error) {
	quote, _, err := s.QuoteWithCoupon(ctx, hostID, count, months, couponCode, planCode)
	return quote, err
}

// QuoteWithCoupon is Quote plus the validated coupon itself, for callers
// that go on to redeem it. The coupon is nil when no code was given.
func (s *PricingService) QuoteWithCoupon(
	ctx context.Context,
	hostID uuid.UUID,
	count, months int,
	couponCode string,
	planCode string,
) (domain.QuoteBreakdown, *domain.Coupon, error) {
	table, err := s.tiers.TierTable(ctx)
	if err != nil {
		return domain.QuoteBreakdown{}, nil, fmt.Errorf("load tier table: %w", err)
	}
	pricePerListing, err := table.PriceFor(count)
	if err != nil {
		return domain.QuoteBreakdown{}, nil, err
	}

	var coupon *domain.Coupon
	var rule domain.CouponRule
	var code string
	if couponCode != "" {
		coupon, err = s.lookupCoupon(ctx, hostID, couponCode, count, months, pricePerListing, planCode)
		if err != nil {
			return domain.QuoteBreakdown{}, nil, err
		}
		rule = coupon.Rule
		code = coupon.Code
	}

	quote, err := domain.ComputeQuote(count, months, pricePerListing, rule)
	if err != nil {
		return domain.QuoteBreakdown{}, nil, err
	}
	quote.CouponCode = code
	return quote, coupon, nil
}

// ValidatedCoupon returns the coupon for a code after running the full
// validation chain against the order, or the first failing sentinel.
func (s *PricingService) ValidatedCoupon(
	ctx context.Context,
	hostID uuid.UUID,
	couponCode string,
	count, months int,
	planCode string,
) (*domain.Coupon, error) {
	table, err := s.tiers.TierTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tier table: %w", err)
	}
	pricePerListing, err := table.PriceFor(count)
	if err != nil {
		return nil, err
	}
	return s.lookupCoupon(ctx, hostID, couponCode, count, months, pricePerListing, planCode)
}

func (s *PricingService) lookupCoupon(
	ctx context.Context,
	hostID uuid.UUID,
	couponCode string,
	count, months int,
	pricePerListing float64,
	planCode string,
) (*domain.Coupon, error) {
	code := domain.NormalizeCode(couponCode)
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load coupon %q: %w", code, err)
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotFound
	}

	hostUses, err := s.coupons.CountUsesByHost(ctx, coupon.ID, hostID)
	if err != nil {
		return nil, fmt.Errorf("count coupon uses: %w", err)
	}

	baseAmount := float64(count) * float64(months) * pricePerListing
	if err := coupon.Validate(s.now(), months, baseAmount, planCode, hostUses); err != nil {
		return nil, err
	}
	return coupon, nil
}
