package domain

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponInactive    = errors.New("coupon is not active")
	ErrCouponNotStarted  = errors.New("coupon is not valid yet")
	ErrCouponExpired     = errors.New("coupon has expired")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrCouponHostLimit   = errors.New("coupon already redeemed the maximum times by this host")
	ErrCouponMinDuration = errors.New("billing duration is below the coupon minimum")
	ErrCouponMinAmount   = errors.New("order amount is below the coupon minimum")
	ErrCouponPlanScope   = errors.New("coupon does not apply to this plan")
	ErrUnknownCouponKind = errors.New("unknown coupon kind")
)

// CouponKind names the closed set of coupon rule variants.
type CouponKind string

const (
	KindPercentage  CouponKind = "percentage"
	KindFixedAmount CouponKind = "fixed_amount"
	KindFreeMonths  CouponKind = "free_months"
	KindCustomPlan  CouponKind = "custom_plan"
)

// CouponRule is the discount behavior of a coupon. Each variant carries
// only the fields it needs.
type CouponRule interface {
	Kind() CouponKind
}

// PercentageRule discounts a percentage of the base amount.
type PercentageRule struct {
	Percent float64
}

func (PercentageRule) Kind() CouponKind { return KindPercentage }

// FixedAmountRule discounts a fixed amount, clamped to the base amount.
type FixedAmountRule struct {
	Amount float64
}

func (FixedAmountRule) Kind() CouponKind { return KindFixedAmount }

// FreeMonthsRule grants free renewal months; the current cycle's payable
// amount is not reduced.
type FreeMonthsRule struct {
	Months int
}

func (FreeMonthsRule) Kind() CouponKind { return KindFreeMonths }

// CustomPlanRule short-circuits pricing and hands the order to an operator.
type CustomPlanRule struct{}

func (CustomPlanRule) Kind() CouponKind { return KindCustomPlan }

// NormalizeCode uppercases a coupon code for case-insensitive lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Coupon is a named discount rule with usage and validity constraints.
type Coupon struct {
	ID              uuid.UUID
	Code            string
	Rule            CouponRule
	MaxUses         *int
	UsedCount       int
	MaxUsesPerHost  int
	ValidFrom       time.Time
	ValidUntil      *time.Time
	MinAmount       float64
	MinDuration     int
	ApplicablePlans []string
	Active          bool
}

// Validate checks the coupon against an order. Checks run in a fixed
// order and the first failure wins, so the caller always gets a single
// stable reason.
func (c *Coupon) Validate(now time.Time, months int, baseAmount float64, planCode string, hostUses int) error {
	if !c.Active {
		return ErrCouponInactive
	}
	if now.Before(c.ValidFrom) {
		return ErrCouponNotStarted
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrCouponExpired
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return ErrCouponExhausted
	}
	if c.MaxUsesPerHost > 0 && hostUses >= c.MaxUsesPerHost {
		return ErrCouponHostLimit
	}
	if c.MinDuration > 0 && months < c.MinDuration {
		return ErrCouponMinDuration
	}
	if c.MinAmount > 0 && baseAmount < c.MinAmount {
		return ErrCouponMinAmount
	}
	if len(c.ApplicablePlans) > 0 && !slices.Contains(c.ApplicablePlans, planCode) {
		return ErrCouponPlanScope
	}
	return nil
}

// CouponUse is one immutable redemption record. The count of rows per
// coupon always equals the coupon's UsedCount.
type CouponUse struct {
	ID              uuid.UUID
	CouponID        uuid.UUID
	HostID          uuid.UUID
	OrderID         uuid.UUID
	DiscountApplied float64
	OriginalAmount  float64
	FinalAmount     float64
	CreatedAt       time.Time
}

// NewCouponUse creates a redemption record for an invoice.
func NewCouponUse(couponID, hostID, orderID uuid.UUID, discount, original, final float64) *CouponUse {
	return &CouponUse{
		ID:              uuid.New(),
		CouponID:        couponID,
		HostID:          hostID,
		OrderID:         orderID,
		DiscountApplied: discount,
		OriginalAmount:  original,
		FinalAmount:     final,
		CreatedAt:       time.Now().UTC(),
	}
}
