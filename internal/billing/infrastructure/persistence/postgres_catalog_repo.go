package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	sharedPersistence "github.com/hostfolio/hostfolio/internal/shared/infrastructure/persistence"
)

// PostgresPlanRepository reads the plan catalog from PostgreSQL.
type PostgresPlanRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPlanRepository creates a new PostgreSQL plan repository.
func NewPostgresPlanRepository(pool *pgxpool.Pool) *PostgresPlanRepository {
	return &PostgresPlanRepository{pool: pool}
}

// FindByCode returns the plan, or nil when it does not exist.
func (r *PostgresPlanRepository) FindByCode(ctx context.Context, code string) (*domain.Plan, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT code, name, max_listings, price_monthly, price_semestral, price_yearly
		FROM plans
		WHERE code = $1
	`
	var plan domain.Plan
	err := q.QueryRow(ctx, query, code).Scan(
		&plan.Code, &plan.Name, &plan.MaxListings,
		&plan.PriceMonthly, &plan.PriceSemestral, &plan.PriceYearly)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindAll returns the full plan catalog ordered by quota.
func (r *PostgresPlanRepository) FindAll(ctx context.Context) ([]domain.Plan, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT code, name, max_listings, price_monthly, price_semestral, price_yearly
		FROM plans
		ORDER BY max_listings
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var plan domain.Plan
		if err := rows.Scan(&plan.Code, &plan.Name, &plan.MaxListings,
			&plan.PriceMonthly, &plan.PriceSemestral, &plan.PriceYearly); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// PostgresTierRepository reads the pricing tier table from PostgreSQL.
type PostgresTierRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTierRepository creates a new PostgreSQL tier repository.
func NewPostgresTierRepository(pool *pgxpool.Pool) *PostgresTierRepository {
	return &PostgresTierRepository{pool: pool}
}

// TierTable loads and validates the tier table.
func (r *PostgresTierRepository) TierTable(ctx context.Context) (domain.TierTable, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT min_listings, max_listings, price_per_listing
		FROM pricing_tiers
		ORDER BY min_listings
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return domain.TierTable{}, err
	}
	defer rows.Close()

	var tiers []domain.PricingTier
	for rows.Next() {
		var tier domain.PricingTier
		if err := rows.Scan(&tier.MinListings, &tier.MaxListings, &tier.PricePerListing); err != nil {
			return domain.TierTable{}, err
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return domain.TierTable{}, err
	}
	return domain.NewTierTable(tiers)
}

// PostgresAccountRepository reads host accounts from PostgreSQL.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a new PostgreSQL account repository.
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// FindByID returns the account, or nil when it does not exist.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, hostID uuid.UUID) (*domain.HostAccount, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	var account domain.HostAccount
	err := q.QueryRow(ctx,
		`SELECT id, trial_ends_at FROM host_accounts WHERE id = $1`, hostID).
		Scan(&account.ID, &account.TrialEndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

var (
	_ domain.PlanRepository    = (*PostgresPlanRepository)(nil)
	_ domain.TierRepository    = (*PostgresTierRepository)(nil)
	_ domain.AccountRepository = (*PostgresAccountRepository)(nil)
)
