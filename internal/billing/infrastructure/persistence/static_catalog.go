package persistence

import (
	"context"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
)

// DefaultPlans is the built-in plan catalog used by local mode.
var DefaultPlans = []domain.Plan{
	{Code: "starter", Name: "Starter", MaxListings: 3, PriceMonthly: 7.50, PriceSemestral: 40.50, PriceYearly: 72.00},
	{Code: "host", Name: "Host", MaxListings: 10, PriceMonthly: 22.00, PriceSemestral: 118.80, PriceYearly: 211.20},
	{Code: "pro", Name: "Pro", MaxListings: 30, PriceMonthly: 54.00, PriceSemestral: 291.60, PriceYearly: 518.40},
}

// DefaultTiers is the built-in per-listing pricing used by local mode.
func DefaultTiers() []domain.PricingTier {
	five, twenty := 5, 20
	return []domain.PricingTier{
		{MinListings: 1, MaxListings: &five, PricePerListing: 2.50},
		{MinListings: 6, MaxListings: &twenty, PricePerListing: 2.20},
		{MinListings: 21, PricePerListing: 1.80},
	}
}

// StaticPlanRepository serves a fixed plan catalog.
type StaticPlanRepository struct {
	plans []domain.Plan
}

// NewStaticPlanRepository creates a plan repository over a fixed catalog.
func NewStaticPlanRepository(plans []domain.Plan) *StaticPlanRepository {
	return &StaticPlanRepository{plans: plans}
}

func (r *StaticPlanRepository) FindByCode(ctx context.Context, code string) (*domain.Plan, error) {
	for i := range r.plans {
		if r.plans[i].Code == code {
			plan := r.plans[i]
			return &plan, nil
		}
	}
	return nil, nil
}

func (r *StaticPlanRepository) FindAll(ctx context.Context) ([]domain.Plan, error) {
	out := make([]domain.Plan, len(r.plans))
	copy(out, r.plans)
	return out, nil
}

// StaticTierRepository serves a fixed tier table.
type StaticTierRepository struct {
	table domain.TierTable
}

// NewStaticTierRepository validates and wraps a fixed tier table.
func NewStaticTierRepository(tiers []domain.PricingTier) (*StaticTierRepository, error) {
	table, err := domain.NewTierTable(tiers)
	if err != nil {
		return nil, err
	}
	return &StaticTierRepository{table: table}, nil
}

func (r *StaticTierRepository) TierTable(ctx context.Context) (domain.TierTable, error) {
	return r.table, nil
}

var (
	_ domain.PlanRepository = (*StaticPlanRepository)(nil)
	_ domain.TierRepository = (*StaticTierRepository)(nil)
)
