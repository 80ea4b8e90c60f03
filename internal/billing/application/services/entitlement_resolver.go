package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
)

// TrialMaxListings is the listing quota during the account-level trial.
const TrialMaxListings = 2

// EntitlementSource names where a host's entitlement comes from.
type EntitlementSource string

const (
	SourceSubscription EntitlementSource = "subscription"
	SourceAccountTrial EntitlementSource = "account_trial"
	SourceNone         EntitlementSource = "none"
)

// Entitlement is the resolved answer to "how many listings may this host
// have, and can they add one more".
type Entitlement struct {
	Source        EntitlementSource `json:"source"`
	MaxListings   int               `json:"max_listings"`
	CurrentCount  int               `json:"current_count"`
	CanCreateMore bool              `json:"can_create_more"`
	Reason        string            `json:"reason,omitempty"`
}

// ListingCounter reports how many listings a host currently has. Satisfied
// by the listing repository.
type ListingCounter interface {
	CountByHost(ctx context.Context, hostID uuid.UUID) (int, error)
}

// EntitlementResolver answers entitlement questions from injected
// repositories. It is stateless and side-effect free: resolving never
// writes anything.
type EntitlementResolver struct {
	subscriptions domain.SubscriptionRepository
	plans         domain.PlanRepository
	accounts      domain.AccountRepository
	listings      ListingCounter
	now           func() time.Time
}

// NewEntitlementResolver creates an entitlement resolver.
func NewEntitlementResolver(
	subscriptions domain.SubscriptionRepository,
	plans domain.PlanRepository,
	accounts domain.AccountRepository,
	listings ListingCounter,
) *EntitlementResolver {
	return &EntitlementResolver{
		subscriptions: subscriptions,
		plans:         plans,
		accounts:      accounts,
		listings:      listings,
		now:           time.Now,
	}
}

// Resolve determines the host's entitlement. Priority: current paid
// subscription, then the account-level trial window, then none. The
// account trial is independent from per-listing trials and the two can
// disagree; the subscription always wins while it is current.
func (r *EntitlementResolver) Resolve(ctx context.Context, hostID uuid.UUID) (Entitlement, error) {
	now := r.now()

	count, err := r.listings.CountByHost(ctx, hostID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("count listings: %w", err)
	}

	sub, err := r.subscriptions.FindCurrentByHost(ctx, hostID, now)
	if err != nil {
		return Entitlement{}, fmt.Errorf("load subscription: %w", err)
	}
	if sub != nil {
		max, err := r.subscriptionQuota(ctx, sub)
		if err != nil {
			return Entitlement{}, err
		}
		return Entitlement{
			Source:        SourceSubscription,
			MaxListings:   max,
			CurrentCount:  count,
			CanCreateMore: count < max,
		}, nil
	}

	account, err := r.accounts.FindByID(ctx, hostID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("load account: %w", err)
	}
	if account != nil && account.InTrial(now) {
		return Entitlement{
			Source:        SourceAccountTrial,
			MaxListings:   TrialMaxListings,
			CurrentCount:  count,
			CanCreateMore: count < TrialMaxListings,
		}, nil
	}

	reason, err := r.upgradeHint(ctx, count)
	if err != nil {
		return Entitlement{}, err
	}
	return Entitlement{
		Source:       SourceNone,
		CurrentCount: count,
		Reason:       reason,
	}, nil
}

func (r *EntitlementResolver) subscriptionQuota(ctx context.Context, sub *domain.Subscription) (int, error) {
	if custom := sub.CustomMaxListings(); custom != nil {
		return *custom, nil
	}
	plan, err := r.plans.FindByCode(ctx, sub.PlanCode())
	if err != nil {
		return 0, fmt.Errorf("load plan %q: %w", sub.PlanCode(), err)
	}
	if plan == nil {
		return 0, fmt.Errorf("subscription references unknown plan %q", sub.PlanCode())
	}
	return plan.MaxListings, nil
}

func (r *EntitlementResolver) upgradeHint(ctx context.Context, count int) (string, error) {
	plans, err := r.plans.FindAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load plan catalog: %w", err)
	}
	plan := domain.CheapestPlanFor(plans, count)
	if plan == nil {
		return "no active subscription", nil
	}
	return fmt.Sprintf("no active subscription; the %s plan covers up to %d listings at %.2f/month",
		plan.Name, plan.MaxListings, plan.PriceMonthly), nil
}
