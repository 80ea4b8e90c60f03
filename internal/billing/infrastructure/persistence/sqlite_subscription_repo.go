package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	sharedPersistence "github.com/hostfolio/hostfolio/internal/shared/infrastructure/persistence"
)

// SQLiteSubscriptionRepository implements domain.SubscriptionRepository on
// SQLite for local mode.
type SQLiteSubscriptionRepository struct {
	db *sql.DB
}

// NewSQLiteSubscriptionRepository creates a new SQLite subscription
// repository.
func NewSQLiteSubscriptionRepository(db *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{db: db}
}

// Save inserts a new subscription, joining the context transaction if any.
func (r *SQLiteSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	query := `
		INSERT INTO subscriptions (
			id, host_id, plan_code, custom_price, custom_max_listings, status,
			start_date, end_date, cancel_at_period_end, canceled_at, cancel_reason,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		sub.ID().String(),
		sub.HostID().String(),
		sub.PlanCode(),
		sub.CustomPrice(),
		sub.CustomMaxListings(),
		string(sub.Status()),
		sub.StartDate(),
		sub.EndDate(),
		sub.CancelAtPeriodEnd(),
		sub.CanceledAt(),
		sub.CancelReason(),
		sub.CreatedAt(),
		sub.UpdatedAt(),
	)
	return err
}

// Update persists the subscription's mutable fields.
func (r *SQLiteSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	query := `
		UPDATE subscriptions
		SET status = ?, end_date = ?, cancel_at_period_end = ?,
		    canceled_at = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := q.ExecContext(ctx, query,
		string(sub.Status()),
		sub.EndDate(),
		sub.CancelAtPeriodEnd(),
		sub.CanceledAt(),
		sub.CancelReason(),
		sub.UpdatedAt(),
		sub.ID().String(),
	)
	return err
}

// FindCurrentByHost returns the host's ACTIVE subscription with
// endDate >= now, or nil when there is none.
func (r *SQLiteSubscriptionRepository) FindCurrentByHost(ctx context.Context, hostID uuid.UUID, now time.Time) (*domain.Subscription, error) {
	q := sharedPersistence.SQLiteExecutor(ctx, r.db)
	query := `
		SELECT id, host_id, plan_code, custom_price, custom_max_listings, status,
		       start_date, end_date, cancel_at_period_end, canceled_at, cancel_reason,
		       created_at, updated_at
		FROM subscriptions
		WHERE host_id = ? AND status = 'active' AND end_date >= ?
		ORDER BY end_date DESC
		LIMIT 1
	`
	row := q.QueryRowContext(ctx, query, hostID.String(), now)

	var (
		idStr, hostIDStr     string
		planCode             string
		customPrice          *float64
		customMaxListings    *int
		status               string
		startDate, endDate   time.Time
		cancelAtPeriodEnd    bool
		canceledAt           *time.Time
		cancelReason         string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&idStr, &hostIDStr, &planCode, &customPrice, &customMaxListings, &status,
		&startDate, &endDate, &cancelAtPeriodEnd, &canceledAt, &cancelReason,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	parsedHostID, err := uuid.Parse(hostIDStr)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateSubscription(id, parsedHostID, planCode, customPrice, customMaxListings,
		domain.SubscriptionStatus(status), startDate, endDate, cancelAtPeriodEnd,
		canceledAt, cancelReason, createdAt, updatedAt), nil
}

var _ domain.SubscriptionRepository = (*SQLiteSubscriptionRepository)(nil)
