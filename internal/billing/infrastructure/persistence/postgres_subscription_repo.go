package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	sharedPersistence "github.com/hostfolio/hostfolio/internal/shared/infrastructure/persistence"
)

const subscriptionColumns = `
	id, host_id, plan_code, custom_price, custom_max_listings, status,
	start_date, end_date, cancel_at_period_end, canceled_at, cancel_reason,
	created_at, updated_at
`

// PostgresSubscriptionRepository implements domain.SubscriptionRepository
// using PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new PostgreSQL subscription
// repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Save inserts a new subscription, joining the context transaction if any.
func (r *PostgresSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := q.Exec(ctx, query,
		sub.ID(),
		sub.HostID(),
		sub.PlanCode(),
		sub.CustomPrice(),
		sub.CustomMaxListings(),
		sub.Status(),
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
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		UPDATE subscriptions
		SET status = $2, end_date = $3, cancel_at_period_end = $4,
		    canceled_at = $5, cancel_reason = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query,
		sub.ID(),
		sub.Status(),
		sub.EndDate(),
		sub.CancelAtPeriodEnd(),
		sub.CanceledAt(),
		sub.CancelReason(),
		sub.UpdatedAt(),
	)
	return err
}

// FindCurrentByHost returns the host's ACTIVE subscription with
// endDate >= now, or nil when there is none.
func (r *PostgresSubscriptionRepository) FindCurrentByHost(ctx context.Context, hostID uuid.UUID, now time.Time) (*domain.Subscription, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE host_id = $1 AND status = 'active' AND end_date >= $2
		ORDER BY end_date DESC
		LIMIT 1
	`
	row := q.QueryRow(ctx, query, hostID, now)
	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		id, hostID           uuid.UUID
		planCode             string
		customPrice          *float64
		customMaxListings    *int
		status               domain.SubscriptionStatus
		startDate, endDate   time.Time
		cancelAtPeriodEnd    bool
		canceledAt           *time.Time
		cancelReason         string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &hostID, &planCode, &customPrice, &customMaxListings, &status,
		&startDate, &endDate, &cancelAtPeriodEnd, &canceledAt, &cancelReason,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateSubscription(id, hostID, planCode, customPrice, customMaxListings,
		status, startDate, endDate, cancelAtPeriodEnd, canceledAt, cancelReason,
		createdAt, updatedAt), nil
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
