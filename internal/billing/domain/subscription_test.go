package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSubscription(t *testing.T, now time.Time) *Subscription {
	t.Helper()
	sub := NewSubscription(uuid.New(), "starter", now.AddDate(0, -1, 0), now.AddDate(0, 11, 0))
	sub.ClearDomainEvents()
	return sub
}

func TestNewSubscription(t *testing.T) {
	hostID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := NewSubscription(hostID, "host", now, now.AddDate(1, 0, 0))

	assert.Equal(t, hostID, sub.HostID())
	assert.Equal(t, "host", sub.PlanCode())
	assert.Equal(t, SubscriptionActive, sub.Status())
	assert.Nil(t, sub.CustomPrice())
	assert.Nil(t, sub.CustomMaxListings())
	assert.False(t, sub.CancelAtPeriodEnd())

	events := sub.DomainEvents()
	require.Len(t, events, 1)
	require.IsType(t, &SubscriptionStarted{}, events[0])
}

func TestNewCustomSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := NewCustomSubscription(uuid.New(), 99.00, 120, now, now.AddDate(1, 0, 0))

	assert.Empty(t, sub.PlanCode())
	require.NotNil(t, sub.CustomPrice())
	assert.Equal(t, 99.00, *sub.CustomPrice())
	require.NotNil(t, sub.CustomMaxListings())
	assert.Equal(t, 120, *sub.CustomMaxListings())
}

func TestIsCurrent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, now)

	assert.True(t, sub.IsCurrent(now))
	assert.True(t, sub.IsCurrent(sub.EndDate()))
	assert.False(t, sub.IsCurrent(sub.EndDate().Add(time.Second)))
}

func TestCancel_AtPeriodEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, now)
	end := sub.EndDate()

	err := sub.Cancel("too expensive", false, now)
	require.NoError(t, err)

	assert.Equal(t, SubscriptionActive, sub.Status())
	assert.True(t, sub.CancelAtPeriodEnd())
	assert.Equal(t, end, sub.EndDate())
	require.NotNil(t, sub.CanceledAt())
	assert.Equal(t, now, *sub.CanceledAt())
	assert.Equal(t, "too expensive", sub.CancelReason())
	assert.True(t, sub.IsCurrent(now))

	events := sub.DomainEvents()
	require.Len(t, events, 1)
	require.IsType(t, &SubscriptionCancelScheduled{}, events[0])
}

func TestCancel_Immediate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, now)

	err := sub.Cancel("policy violation", true, now)
	require.NoError(t, err)

	assert.Equal(t, SubscriptionCanceled, sub.Status())
	assert.Equal(t, now, sub.EndDate())
	assert.False(t, sub.CancelAtPeriodEnd())
	assert.False(t, sub.IsCurrent(now.Add(time.Second)))

	events := sub.DomainEvents()
	require.Len(t, events, 1)
	canceled, ok := events[0].(*SubscriptionEnded)
	require.True(t, ok)
	assert.True(t, canceled.Immediate)
}

func TestCancel_NotCurrent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, now)
	require.NoError(t, sub.Cancel("", true, now))
	sub.ClearDomainEvents()

	err := sub.Cancel("again", true, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
	assert.Empty(t, sub.DomainEvents())
}

func TestReactivate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, now)
	require.NoError(t, sub.Cancel("changed my mind", false, now))
	sub.ClearDomainEvents()

	err := sub.Reactivate(now.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, sub.CancelAtPeriodEnd())
	assert.Nil(t, sub.CanceledAt())
	assert.Empty(t, sub.CancelReason())
	assert.Equal(t, SubscriptionActive, sub.Status())

	events := sub.DomainEvents()
	require.Len(t, events, 1)
	require.IsType(t, &SubscriptionReactivated{}, events[0])
}

func TestReactivate_NotScheduled(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, now)

	err := sub.Reactivate(now)
	assert.ErrorIs(t, err, ErrNothingToReactivate)
}

func TestReactivate_AfterImmediateCancel(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := activeSubscription(t, now)
	require.NoError(t, sub.Cancel("", true, now))

	err := sub.Reactivate(now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNothingToReactivate)
}

func TestRehydrateSubscription_NoEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := RehydrateSubscription(
		uuid.New(), uuid.New(), "pro", nil, nil,
		SubscriptionActive, now, now.AddDate(1, 0, 0),
		false, nil, "", now, now,
	)

	assert.Empty(t, sub.DomainEvents())
	assert.Equal(t, "pro", sub.PlanCode())
}
