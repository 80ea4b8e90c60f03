package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStatusConflict is reported by Update when the listing's persisted
// status no longer matches the expected one, meaning a concurrent
// transition won.
var ErrStatusConflict = errors.New("listing status changed concurrently")

// Repository persists listings.
type Repository interface {
	Save(ctx context.Context, listing *Listing) error

	// Update persists the listing only when its stored status still equals
	// expected; otherwise it returns ErrStatusConflict. This is the guard
	// that keeps a concurrent payment and sweep expiry from both applying.
	Update(ctx context.Context, listing *Listing, expected Status) error

	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)

	// FindOwnedByIDs returns the subset of ids owned by the host.
	FindOwnedByIDs(ctx context.Context, hostID uuid.UUID, ids []uuid.UUID) ([]*Listing, error)

	// CountByHost counts all listings of a host.
	CountByHost(ctx context.Context, hostID uuid.UUID) (int, error)

	// CountMonetizedByHost counts the host's ACTIVE and TRIAL listings.
	CountMonetizedByHost(ctx context.Context, hostID uuid.UUID) (int, error)

	// CountActiveByHost counts the host's ACTIVE listings.
	CountActiveByHost(ctx context.Context, hostID uuid.UUID) (int, error)

	// DueForExpiry returns TRIAL listings whose trial has ended.
	DueForExpiry(ctx context.Context, now time.Time) ([]*Listing, error)

	// DueForWarning returns TRIAL listings inside the window's threshold
	// that have not been warned for it yet.
	DueForWarning(ctx context.Context, window WarnWindow, now time.Time) ([]*Listing, error)
}
