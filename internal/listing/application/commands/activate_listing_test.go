package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/hostfolio/internal/listing/domain"
	"github.com/hostfolio/hostfolio/internal/listing/infrastructure/persistence"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

func newActivateHandler(t *testing.T, repo *persistence.MemoryRepository) *ActivateListingHandler {
	t.Helper()
	handler := NewActivateListingHandler(repo, noopUnitOfWork{}, outbox.NewMemoryRepository(), nil)
	handler.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return handler
}

func seedDraft(t *testing.T, repo *persistence.MemoryRepository, hostID uuid.UUID, name string) *domain.Listing {
	t.Helper()
	listing, err := domain.NewListing(hostID, name)
	require.NoError(t, err)
	listing.ClearDomainEvents()
	require.NoError(t, repo.Save(context.Background(), listing))
	return listing
}

func TestActivateListing_FirstIsFree(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	handler := newActivateHandler(t, repo)
	hostID := uuid.New()
	draft := seedDraft(t, repo, hostID, "First tour")

	listing, err := handler.Handle(context.Background(), ActivateListingCommand{HostID: hostID, ListingID: draft.ID()})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, listing.Status())
	assert.Nil(t, listing.TrialEndsAt())
	assert.True(t, listing.IsPublished())
}

func TestActivateListing_SecondEntersTrial(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	handler := newActivateHandler(t, repo)
	hostID := uuid.New()

	first := seedDraft(t, repo, hostID, "First tour")
	_, err := handler.Handle(context.Background(), ActivateListingCommand{HostID: hostID, ListingID: first.ID()})
	require.NoError(t, err)

	second := seedDraft(t, repo, hostID, "Second tour")
	listing, err := handler.Handle(context.Background(), ActivateListingCommand{HostID: hostID, ListingID: second.ID()})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTrial, listing.Status())
	require.NotNil(t, listing.TrialEndsAt())
	assert.Equal(t, handler.now().Add(domain.TrialDuration), *listing.TrialEndsAt())
}

func TestActivateListing_NotFound(t *testing.T) {
	handler := newActivateHandler(t, persistence.NewMemoryRepository())

	_, err := handler.Handle(context.Background(), ActivateListingCommand{HostID: uuid.New(), ListingID: uuid.New()})
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestActivateListing_WrongOwner(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	handler := newActivateHandler(t, repo)
	draft := seedDraft(t, repo, uuid.New(), "Someone else's tour")

	_, err := handler.Handle(context.Background(), ActivateListingCommand{HostID: uuid.New(), ListingID: draft.ID()})
	assert.ErrorIs(t, err, ErrNotListingOwner)
}

func TestActivateListing_AlreadyMonetized(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	handler := newActivateHandler(t, repo)
	hostID := uuid.New()
	draft := seedDraft(t, repo, hostID, "Tour")

	_, err := handler.Handle(context.Background(), ActivateListingCommand{HostID: hostID, ListingID: draft.ID()})
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), ActivateListingCommand{HostID: hostID, ListingID: draft.ID()})
	assert.ErrorIs(t, err, domain.ErrAlreadyMonetized)
}
