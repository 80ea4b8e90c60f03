package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/hostfolio/hostfolio/internal/shared/domain"
)

var (
	ErrListingEmptyName   = errors.New("listing name cannot be empty")
	ErrAlreadyMonetized   = errors.New("listing is already in trial or active")
	ErrNotInTrial         = errors.New("listing is not in trial")
	ErrTrialNotOver       = errors.New("trial period has not ended yet")
	ErrInvalidTransition  = errors.New("invalid listing status transition")
	ErrAlreadyNotified    = errors.New("warning already issued for this window")
	ErrUnknownWarnWindow  = errors.New("unknown warning window")
)

// TrialDuration is the grace period a non-free listing stays published
// without payment.
const TrialDuration = 48 * time.Hour

// Status is the monetization state of a listing.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// WarnWindow identifies one of the graduated trial-expiry warnings.
type WarnWindow string

const (
	Warn24h WarnWindow = "24h"
	Warn6h  WarnWindow = "6h"
	Warn1h  WarnWindow = "1h"
)

// Threshold returns how far before trial expiry the window opens.
func (w WarnWindow) Threshold() (time.Duration, error) {
	switch w {
	case Warn24h:
		return 24 * time.Hour, nil
	case Warn6h:
		return 6 * time.Hour, nil
	case Warn1h:
		return time.Hour, nil
	default:
		return 0, ErrUnknownWarnWindow
	}
}

// Listing is a published digital guide for one rental unit, the billable
// resource of the engine.
type Listing struct {
	sharedDomain.BaseAggregateRoot
	hostID        uuid.UUID
	name          string
	status        Status
	trialStartsAt *time.Time
	trialEndsAt   *time.Time
	notified24h   bool
	notified6h    bool
	notified1h    bool
	publishedAt   *time.Time
	isPublished   bool
}

// NewListing creates a listing in DRAFT.
func NewListing(hostID uuid.UUID, name string) (*Listing, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrListingEmptyName
	}

	listing := &Listing{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		hostID:            hostID,
		name:              name,
		status:            StatusDraft,
	}
	listing.AddDomainEvent(NewListingCreated(listing))
	return listing, nil
}

func (l *Listing) HostID() uuid.UUID         { return l.hostID }
func (l *Listing) Name() string              { return l.name }
func (l *Listing) Status() Status            { return l.status }
func (l *Listing) TrialStartsAt() *time.Time { return l.trialStartsAt }
func (l *Listing) TrialEndsAt() *time.Time   { return l.trialEndsAt }
func (l *Listing) Notified24h() bool         { return l.notified24h }
func (l *Listing) Notified6h() bool          { return l.notified6h }
func (l *Listing) Notified1h() bool          { return l.notified1h }
func (l *Listing) PublishedAt() *time.Time   { return l.publishedAt }
func (l *Listing) IsPublished() bool         { return l.isPublished }

// Activate starts monetization. The host's first monetized listing goes
// straight to ACTIVE as the free allotment; every further listing enters a
// 48-hour trial with all warning flags reset.
func (l *Listing) Activate(firstListing bool, now time.Time) error {
	if l.status == StatusTrial || l.status == StatusActive {
		return ErrAlreadyMonetized
	}

	if firstListing {
		l.status = StatusActive
		l.isPublished = true
		published := now
		l.publishedAt = &published
		l.clearTrial()
		l.Touch()
		l.AddDomainEvent(NewListingActivated(l))
		return nil
	}

	starts := now
	ends := now.Add(TrialDuration)
	l.status = StatusTrial
	l.trialStartsAt = &starts
	l.trialEndsAt = &ends
	l.notified24h = false
	l.notified6h = false
	l.notified1h = false
	l.isPublished = true
	published := now
	l.publishedAt = &published
	l.Touch()
	l.AddDomainEvent(NewTrialStarted(l))
	return nil
}

// Expire suspends a listing whose trial has run out. Calling it on an
// already suspended listing is a no-op.
func (l *Listing) Expire(now time.Time) error {
	if l.status == StatusSuspended {
		return nil
	}
	if l.status != StatusTrial {
		return ErrInvalidTransition
	}
	if l.trialEndsAt == nil || l.trialEndsAt.After(now) {
		return ErrTrialNotOver
	}

	l.status = StatusSuspended
	l.isPublished = false
	l.clearTrial()
	l.Touch()
	l.AddDomainEvent(NewTrialExpired(l))
	return nil
}

// MarkPaid moves a trial or suspended listing to ACTIVE after payment.
func (l *Listing) MarkPaid(now time.Time) error {
	if l.status != StatusTrial && l.status != StatusSuspended {
		return ErrInvalidTransition
	}

	l.status = StatusActive
	l.isPublished = true
	if l.publishedAt == nil {
		published := now
		l.publishedAt = &published
	}
	l.clearTrial()
	l.Touch()
	l.AddDomainEvent(NewListingActivated(l))
	return nil
}

// MarkWarned records that the warning for the given window was issued.
// Issuing a more urgent warning also covers the broader windows, so a
// listing crossing several thresholds between sweeps fires only the most
// urgent one.
func (l *Listing) MarkWarned(window WarnWindow) error {
	if l.status != StatusTrial {
		return ErrNotInTrial
	}

	switch window {
	case Warn1h:
		if l.notified1h {
			return ErrAlreadyNotified
		}
		l.notified1h = true
		l.notified6h = true
		l.notified24h = true
	case Warn6h:
		if l.notified6h {
			return ErrAlreadyNotified
		}
		l.notified6h = true
		l.notified24h = true
	case Warn24h:
		if l.notified24h {
			return ErrAlreadyNotified
		}
		l.notified24h = true
	default:
		return ErrUnknownWarnWindow
	}

	l.Touch()
	l.AddDomainEvent(NewTrialWarningIssued(l, window))
	return nil
}

func (l *Listing) clearTrial() {
	l.trialStartsAt = nil
	l.trialEndsAt = nil
	l.notified24h = false
	l.notified6h = false
	l.notified1h = false
}

// RehydrateListing recreates a listing from persisted state without
// generating events.
func RehydrateListing(
	id uuid.UUID,
	hostID uuid.UUID,
	name string,
	status Status,
	trialStartsAt *time.Time,
	trialEndsAt *time.Time,
	notified24h bool,
	notified6h bool,
	notified1h bool,
	publishedAt *time.Time,
	isPublished bool,
	createdAt time.Time,
	updatedAt time.Time,
) *Listing {
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Listing{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity),
		hostID:            hostID,
		name:              name,
		status:            status,
		trialStartsAt:     trialStartsAt,
		trialEndsAt:       trialEndsAt,
		notified24h:       notified24h,
		notified6h:        notified6h,
		notified1h:        notified1h,
		publishedAt:       publishedAt,
		isPublished:       isPublished,
	}
}
