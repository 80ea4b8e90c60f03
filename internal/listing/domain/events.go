package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/hostfolio/hostfolio/internal/shared/domain"
)

const aggregateType = "Listing"

// ListingCreated is emitted when a listing is created in DRAFT.
type ListingCreated struct {
	sharedDomain.BaseEvent
	ListingID uuid.UUID `json:"listing_id"`
	HostID    uuid.UUID `json:"host_id"`
	Name      string    `json:"name"`
}

// NewListingCreated creates a ListingCreated event.
func NewListingCreated(l *Listing) *ListingCreated {
	return &ListingCreated{
		BaseEvent: sharedDomain.NewBaseEvent(l.ID(), aggregateType, "listings.listing.created"),
		ListingID: l.ID(),
		HostID:    l.HostID(),
		Name:      l.Name(),
	}
}

// TrialStarted is emitted when a listing enters its 48-hour trial.
type TrialStarted struct {
	sharedDomain.BaseEvent
	ListingID   uuid.UUID `json:"listing_id"`
	HostID      uuid.UUID `json:"host_id"`
	TrialEndsAt time.Time `json:"trial_ends_at"`
}

// NewTrialStarted creates a TrialStarted event.
func NewTrialStarted(l *Listing) *TrialStarted {
	event := &TrialStarted{
		BaseEvent: sharedDomain.NewBaseEvent(l.ID(), aggregateType, "listings.trial.started"),
		ListingID: l.ID(),
		HostID:    l.HostID(),
	}
	if l.TrialEndsAt() != nil {
		event.TrialEndsAt = *l.TrialEndsAt()
	}
	return event
}

// TrialExpired is emitted when a trial runs out and the listing is suspended.
type TrialExpired struct {
	sharedDomain.BaseEvent
	ListingID uuid.UUID `json:"listing_id"`
	HostID    uuid.UUID `json:"host_id"`
	Name      string    `json:"name"`
}

// NewTrialExpired creates a TrialExpired event.
func NewTrialExpired(l *Listing) *TrialExpired {
	return &TrialExpired{
		BaseEvent: sharedDomain.NewBaseEvent(l.ID(), aggregateType, "listings.trial.expired"),
		ListingID: l.ID(),
		HostID:    l.HostID(),
		Name:      l.Name(),
	}
}

// ListingActivated is emitted when a listing becomes ACTIVE, either as the
// host's free allotment or after payment.
type ListingActivated struct {
	sharedDomain.BaseEvent
	ListingID uuid.UUID `json:"listing_id"`
	HostID    uuid.UUID `json:"host_id"`
	Name      string    `json:"name"`
}

// NewListingActivated creates a ListingActivated event.
func NewListingActivated(l *Listing) *ListingActivated {
	return &ListingActivated{
		BaseEvent: sharedDomain.NewBaseEvent(l.ID(), aggregateType, "listings.listing.activated"),
		ListingID: l.ID(),
		HostID:    l.HostID(),
		Name:      l.Name(),
	}
}

// TrialWarningIssued is emitted when a graduated expiry warning is recorded.
type TrialWarningIssued struct {
	sharedDomain.BaseEvent
	ListingID   uuid.UUID  `json:"listing_id"`
	HostID      uuid.UUID  `json:"host_id"`
	Window      WarnWindow `json:"window"`
	TrialEndsAt time.Time  `json:"trial_ends_at"`
}

// NewTrialWarningIssued creates a TrialWarningIssued event.
func NewTrialWarningIssued(l *Listing, window WarnWindow) *TrialWarningIssued {
	event := &TrialWarningIssued{
		BaseEvent: sharedDomain.NewBaseEvent(l.ID(), aggregateType, "listings.trial.warning"),
		ListingID: l.ID(),
		HostID:    l.HostID(),
		Window:    window,
	}
	if l.TrialEndsAt() != nil {
		event.TrialEndsAt = *l.TrialEndsAt()
	}
	return event
}
