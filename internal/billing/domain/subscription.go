package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/hostfolio/hostfolio/internal/shared/domain"
)

var (
	ErrNoActiveSubscription = errors.New("host has no active subscription")
	ErrNothingToReactivate  = errors.New("subscription is not scheduled for cancellation")
	ErrSubscriptionEnded    = errors.New("subscription period has already ended")
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// Subscription is a host's paid entitlement to keep listings published.
// A host has at most one subscription that is ACTIVE with endDate >= now.
type Subscription struct {
	sharedDomain.BaseAggregateRoot
	hostID            uuid.UUID
	planCode          string
	customPrice       *float64
	customMaxListings *int
	status            SubscriptionStatus
	startDate         time.Time
	endDate           time.Time
	cancelAtPeriodEnd bool
	canceledAt        *time.Time
	cancelReason      string
}

// NewSubscription creates an active subscription on a catalog plan.
func NewSubscription(hostID uuid.UUID, planCode string, start, end time.Time) *Subscription {
	sub := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		hostID:            hostID,
		planCode:          planCode,
		status:            SubscriptionActive,
		startDate:         start,
		endDate:           end,
	}
	sub.AddDomainEvent(NewSubscriptionStarted(sub))
	return sub
}

// NewCustomSubscription creates an active subscription with an
// operator-negotiated price and quota instead of a catalog plan.
func NewCustomSubscription(hostID uuid.UUID, price float64, maxListings int, start, end time.Time) *Subscription {
	sub := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		hostID:            hostID,
		customPrice:       &price,
		customMaxListings: &maxListings,
		status:            SubscriptionActive,
		startDate:         start,
		endDate:           end,
	}
	sub.AddDomainEvent(NewSubscriptionStarted(sub))
	return sub
}

func (s *Subscription) HostID() uuid.UUID          { return s.hostID }
func (s *Subscription) PlanCode() string           { return s.planCode }
func (s *Subscription) CustomPrice() *float64      { return s.customPrice }
func (s *Subscription) CustomMaxListings() *int    { return s.customMaxListings }
func (s *Subscription) Status() SubscriptionStatus { return s.status }
func (s *Subscription) StartDate() time.Time       { return s.startDate }
func (s *Subscription) EndDate() time.Time         { return s.endDate }
func (s *Subscription) CancelAtPeriodEnd() bool    { return s.cancelAtPeriodEnd }
func (s *Subscription) CanceledAt() *time.Time     { return s.canceledAt }
func (s *Subscription) CancelReason() string       { return s.cancelReason }

// IsCurrent reports whether the subscription grants entitlement now.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.status == SubscriptionActive && !s.endDate.Before(now)
}

// Cancel ends the subscription. Immediate cancellation takes effect now;
// otherwise the subscription stays active until its natural expiry.
func (s *Subscription) Cancel(reason string, immediate bool, now time.Time) error {
	if !s.IsCurrent(now) {
		return ErrNoActiveSubscription
	}

	canceled := now
	s.canceledAt = &canceled
	s.cancelReason = reason

	if immediate {
		s.status = SubscriptionCanceled
		s.endDate = now
		s.cancelAtPeriodEnd = false
		s.Touch()
		s.AddDomainEvent(NewSubscriptionEnded(s, true))
		return nil
	}

	s.cancelAtPeriodEnd = true
	s.Touch()
	s.AddDomainEvent(NewSubscriptionCancelScheduled(s))
	return nil
}

// Reactivate clears a scheduled cancellation. The period continues
// uninterrupted and nothing new is charged.
func (s *Subscription) Reactivate(now time.Time) error {
	if !s.IsCurrent(now) || !s.cancelAtPeriodEnd {
		return ErrNothingToReactivate
	}

	s.cancelAtPeriodEnd = false
	s.canceledAt = nil
	s.cancelReason = ""
	s.Touch()
	s.AddDomainEvent(NewSubscriptionReactivated(s))
	return nil
}

// RehydrateSubscription recreates a subscription from persisted state
// without generating events.
func RehydrateSubscription(
	id uuid.UUID,
	hostID uuid.UUID,
	planCode string,
	customPrice *float64,
	customMaxListings *int,
	status SubscriptionStatus,
	startDate time.Time,
	endDate time.Time,
	cancelAtPeriodEnd bool,
	canceledAt *time.Time,
	cancelReason string,
	createdAt time.Time,
	updatedAt time.Time,
) *Subscription {
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Subscription{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity),
		hostID:            hostID,
		planCode:          planCode,
		customPrice:       customPrice,
		customMaxListings: customMaxListings,
		status:            status,
		startDate:         startDate,
		endDate:           endDate,
		cancelAtPeriodEnd: cancelAtPeriodEnd,
		canceledAt:        canceledAt,
		cancelReason:      cancelReason,
	}
}
