package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/listing/domain"
	sharedPersistence "github.com/hostfolio/hostfolio/internal/shared/infrastructure/persistence"
)

// SQLiteRepository implements domain.Repository on SQLite for local mode.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite listing repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts a new listing, joining the context transaction if any.
func (r *SQLiteRepository) Save(ctx context.Context, listing *domain.Listing) error {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	query := `
		INSERT INTO listings (
			id, host_id, name, status, trial_starts_at, trial_ends_at,
			notified_24h, notified_6h, notified_1h, published_at, is_published,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		listing.ID().String(),
		listing.HostID().String(),
		listing.Name(),
		string(listing.Status()),
		listing.TrialStartsAt(),
		listing.TrialEndsAt(),
		listing.Notified24h(),
		listing.Notified6h(),
		listing.Notified1h(),
		listing.PublishedAt(),
		listing.IsPublished(),
		listing.CreatedAt(),
		listing.UpdatedAt(),
	)
	return err
}

// Update persists the listing only while its stored status still equals
// expected.
func (r *SQLiteRepository) Update(ctx context.Context, listing *domain.Listing, expected domain.Status) error {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	query := `
		UPDATE listings
		SET name = ?, status = ?, trial_starts_at = ?, trial_ends_at = ?,
		    notified_24h = ?, notified_6h = ?, notified_1h = ?,
		    published_at = ?, is_published = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	res, err := q.ExecContext(ctx, query,
		listing.Name(),
		string(listing.Status()),
		listing.TrialStartsAt(),
		listing.TrialEndsAt(),
		listing.Notified24h(),
		listing.Notified6h(),
		listing.Notified1h(),
		listing.PublishedAt(),
		listing.IsPublished(),
		listing.UpdatedAt(),
		listing.ID().String(),
		string(expected),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

// FindByID returns the listing, or nil when it does not exist.
func (r *SQLiteRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	row := q.QueryRowContext(ctx, selectListings+` WHERE id = ?`, id.String())
	listing, err := scanSQLiteListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return listing, err
}

// FindOwnedByIDs returns the subset of ids owned by the host.
func (r *SQLiteRepository) FindOwnedByIDs(ctx context.Context, hostID uuid.UUID, ids []uuid.UUID) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	for _, id := range ids {
		listing, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if listing != nil && listing.HostID() == hostID {
			listings = append(listings, listing)
		}
	}
	return listings, nil
}

// CountByHost counts all listings of a host.
func (r *SQLiteRepository) CountByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.countWhere(ctx, `host_id = ?`, hostID.String())
}

// CountMonetizedByHost counts the host's ACTIVE and TRIAL listings.
func (r *SQLiteRepository) CountMonetizedByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.countWhere(ctx, `host_id = ? AND status IN ('active', 'trial')`, hostID.String())
}

// CountActiveByHost counts the host's ACTIVE listings.
func (r *SQLiteRepository) CountActiveByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.countWhere(ctx, `host_id = ? AND status = 'active'`, hostID.String())
}

func (r *SQLiteRepository) countWhere(ctx context.Context, where string, args ...any) (int, error) {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE `+where, args...).Scan(&count)
	return count, err
}

// DueForExpiry returns TRIAL listings whose trial has ended.
func (r *SQLiteRepository) DueForExpiry(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	rows, err := q.QueryContext(ctx,
		selectListings+` WHERE status = 'trial' AND trial_ends_at <= ? ORDER BY trial_ends_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteListings(rows)
}

// DueForWarning returns TRIAL listings inside the window's threshold that
// have not been warned for it yet.
func (r *SQLiteRepository) DueForWarning(ctx context.Context, window domain.WarnWindow, now time.Time) ([]*domain.Listing, error) {
	threshold, err := window.Threshold()
	if err != nil {
		return nil, err
	}
	flag, err := notifiedColumn(window)
	if err != nil {
		return nil, err
	}

	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	query := selectListings + `
		WHERE status = 'trial'
		  AND trial_ends_at > ?
		  AND trial_ends_at <= ?
		  AND NOT ` + flag + `
		ORDER BY trial_ends_at
	`
	rows, err := q.QueryContext(ctx, query, now, now.Add(threshold))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteListings(rows)
}

const selectListings = `
	SELECT id, host_id, name, status, trial_starts_at, trial_ends_at,
	       notified_24h, notified_6h, notified_1h, published_at, is_published,
	       created_at, updated_at
	FROM listings
`

type sqliteRow interface {
	Scan(dest ...any) error
}

func scanSQLiteListing(row sqliteRow) (*domain.Listing, error) {
	var (
		idStr, hostIDStr           string
		name, status               string
		trialStartsAt, trialEndsAt *time.Time
		n24, n6, n1                bool
		publishedAt                *time.Time
		isPublished                bool
		createdAt, updatedAt       time.Time
	)
	err := row.Scan(&idStr, &hostIDStr, &name, &status, &trialStartsAt, &trialEndsAt,
		&n24, &n6, &n1, &publishedAt, &isPublished, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	hostID, err := uuid.Parse(hostIDStr)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateListing(id, hostID, name, domain.Status(status),
		trialStartsAt, trialEndsAt, n24, n6, n1, publishedAt, isPublished, createdAt, updatedAt), nil
}

func scanSQLiteListings(rows *sql.Rows) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

var _ domain.Repository = (*SQLiteRepository)(nil)
