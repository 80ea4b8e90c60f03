package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/listing/domain"
)

// MemoryRepository implements domain.Repository in memory. Used by tests.
type MemoryRepository struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*domain.Listing
}

// NewMemoryRepository creates an empty in-memory listing repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{listings: make(map[uuid.UUID]*domain.Listing)}
}

func (r *MemoryRepository) Save(ctx context.Context, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID()] = clone(listing)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, listing *domain.Listing, expected domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.listings[listing.ID()]
	if !ok || stored.Status() != expected {
		return domain.ErrStatusConflict
	}
	r.listings[listing.ID()] = clone(listing)
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[id]
	if !ok {
		return nil, nil
	}
	return clone(listing), nil
}

func (r *MemoryRepository) FindOwnedByIDs(ctx context.Context, hostID uuid.UUID, ids []uuid.UUID) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Listing
	for _, id := range ids {
		if listing, ok := r.listings[id]; ok && listing.HostID() == hostID {
			out = append(out, clone(listing))
		}
	}
	return out, nil
}

func (r *MemoryRepository) CountByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.count(func(l *domain.Listing) bool { return l.HostID() == hostID }), nil
}

func (r *MemoryRepository) CountMonetizedByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.count(func(l *domain.Listing) bool {
		return l.HostID() == hostID && (l.Status() == domain.StatusActive || l.Status() == domain.StatusTrial)
	}), nil
}

func (r *MemoryRepository) CountActiveByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.count(func(l *domain.Listing) bool {
		return l.HostID() == hostID && l.Status() == domain.StatusActive
	}), nil
}

func (r *MemoryRepository) DueForExpiry(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	return r.collect(func(l *domain.Listing) bool {
		return l.Status() == domain.StatusTrial && l.TrialEndsAt() != nil && !l.TrialEndsAt().After(now)
	}), nil
}

func (r *MemoryRepository) DueForWarning(ctx context.Context, window domain.WarnWindow, now time.Time) ([]*domain.Listing, error) {
	threshold, err := window.Threshold()
	if err != nil {
		return nil, err
	}
	return r.collect(func(l *domain.Listing) bool {
		if l.Status() != domain.StatusTrial || l.TrialEndsAt() == nil {
			return false
		}
		ends := *l.TrialEndsAt()
		if !ends.After(now) || ends.After(now.Add(threshold)) {
			return false
		}
		switch window {
		case domain.Warn24h:
			return !l.Notified24h()
		case domain.Warn6h:
			return !l.Notified6h()
		default:
			return !l.Notified1h()
		}
	}), nil
}

func (r *MemoryRepository) count(match func(*domain.Listing) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, listing := range r.listings {
		if match(listing) {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) collect(match func(*domain.Listing) bool) []*domain.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Listing
	for _, listing := range r.listings {
		if match(listing) {
			out = append(out, clone(listing))
		}
	}
	return out
}

func clone(l *domain.Listing) *domain.Listing {
	return domain.RehydrateListing(
		l.ID(), l.HostID(), l.Name(), l.Status(),
		copyTime(l.TrialStartsAt()), copyTime(l.TrialEndsAt()),
		l.Notified24h(), l.Notified6h(), l.Notified1h(),
		copyTime(l.PublishedAt()), l.IsPublished(),
		l.CreatedAt(), l.UpdatedAt(),
	)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var _ domain.Repository = (*MemoryRepository)(nil)
