package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/hostfolio/hostfolio/internal/shared/domain"
)

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()

	event := domain.NewBaseEvent(aggregateID, "Listing", "listing.trial.started")

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "Listing", event.AggregateType())
	assert.Equal(t, "listing.trial.started", event.RoutingKey())
	assert.False(t, event.OccurredAt().IsZero())
}

func TestNewBaseEvent_UniqueEventIDs(t *testing.T) {
	aggregateID := uuid.New()

	first := domain.NewBaseEvent(aggregateID, "Listing", "listing.created")
	second := domain.NewBaseEvent(aggregateID, "Listing", "listing.created")

	assert.NotEqual(t, first.EventID(), second.EventID())
}
