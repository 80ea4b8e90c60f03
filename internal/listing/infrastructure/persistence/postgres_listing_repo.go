package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostfolio/hostfolio/internal/listing/domain"
	sharedPersistence "github.com/hostfolio/hostfolio/internal/shared/infrastructure/persistence"
)

const listingColumns = `
	id, host_id, name, status, trial_starts_at, trial_ends_at,
	notified_24h, notified_6h, notified_1h, published_at, is_published,
	created_at, updated_at
`

// PostgresRepository implements domain.Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL listing repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save inserts a new listing, joining the context transaction if any.
func (r *PostgresRepository) Save(ctx context.Context, listing *domain.Listing) error {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := q.Exec(ctx, query,
		listing.ID(),
		listing.HostID(),
		listing.Name(),
		listing.Status(),
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
// expected. Zero matched rows means a concurrent transition won and the
// caller gets ErrStatusConflict.
func (r *PostgresRepository) Update(ctx context.Context, listing *domain.Listing, expected domain.Status) error {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		UPDATE listings
		SET name = $3, status = $4, trial_starts_at = $5, trial_ends_at = $6,
		    notified_24h = $7, notified_6h = $8, notified_1h = $9,
		    published_at = $10, is_published = $11, updated_at = $12
		WHERE id = $1 AND status = $2
	`
	tag, err := q.Exec(ctx, query,
		listing.ID(),
		expected,
		listing.Name(),
		listing.Status(),
		listing.TrialStartsAt(),
		listing.TrialEndsAt(),
		listing.Notified24h(),
		listing.Notified6h(),
		listing.Notified1h(),
		listing.PublishedAt(),
		listing.IsPublished(),
		listing.UpdatedAt(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

// FindByID returns the listing, or nil when it does not exist.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return listing, err
}

// FindOwnedByIDs returns the subset of ids owned by the host.
func (r *PostgresRepository) FindOwnedByIDs(ctx context.Context, hostID uuid.UUID, ids []uuid.UUID) ([]*domain.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `SELECT ` + listingColumns + ` FROM listings WHERE host_id = $1 AND id = ANY($2) ORDER BY created_at`
	rows, err := q.Query(ctx, query, hostID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// CountByHost counts all listings of a host.
func (r *PostgresRepository) CountByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.countWhere(ctx, `host_id = $1`, hostID)
}

// CountMonetizedByHost counts the host's ACTIVE and TRIAL listings.
func (r *PostgresRepository) CountMonetizedByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.countWhere(ctx, `host_id = $1 AND status IN ('active', 'trial')`, hostID)
}

// CountActiveByHost counts the host's ACTIVE listings.
func (r *PostgresRepository) CountActiveByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	return r.countWhere(ctx, `host_id = $1 AND status = 'active'`, hostID)
}

func (r *PostgresRepository) countWhere(ctx context.Context, where string, args ...any) (int, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE `+where, args...).Scan(&count)
	return count, err
}

// DueForExpiry returns TRIAL listings whose trial has ended.
func (r *PostgresRepository) DueForExpiry(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE status = 'trial' AND trial_ends_at <= $1
		ORDER BY trial_ends_at
	`
	rows, err := q.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// DueForWarning returns TRIAL listings inside the window's threshold that
// have not been warned for it yet.
func (r *PostgresRepository) DueForWarning(ctx context.Context, window domain.WarnWindow, now time.Time) ([]*domain.Listing, error) {
	threshold, err := window.Threshold()
	if err != nil {
		return nil, err
	}
	flag, err := notifiedColumn(window)
	if err != nil {
		return nil, err
	}

	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE status = 'trial'
		  AND trial_ends_at > $1
		  AND trial_ends_at <= $2
		  AND NOT ` + flag + `
		ORDER BY trial_ends_at
	`
	rows, err := q.Query(ctx, query, now, now.Add(threshold))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

func notifiedColumn(window domain.WarnWindow) (string, error) {
	switch window {
	case domain.Warn24h:
		return "notified_24h", nil
	case domain.Warn6h:
		return "notified_6h", nil
	case domain.Warn1h:
		return "notified_1h", nil
	default:
		return "", domain.ErrUnknownWarnWindow
	}
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		id, hostID                 uuid.UUID
		name                       string
		status                     domain.Status
		trialStartsAt, trialEndsAt *time.Time
		n24, n6, n1                bool
		publishedAt                *time.Time
		isPublished                bool
		createdAt, updatedAt       time.Time
	)
	err := row.Scan(&id, &hostID, &name, &status, &trialStartsAt, &trialEndsAt,
		&n24, &n6, &n1, &publishedAt, &isPublished, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateListing(id, hostID, name, status, trialStartsAt, trialEndsAt,
		n24, n6, n1, publishedAt, isPublished, createdAt, updatedAt), nil
}

func scanListings(rows pgx.Rows) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
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

var _ domain.Repository = (*PostgresRepository)(nil)
