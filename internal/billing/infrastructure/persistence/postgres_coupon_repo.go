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

// PostgresCouponRepository implements domain.CouponRepository using
// PostgreSQL.
type PostgresCouponRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCouponRepository creates a new PostgreSQL coupon repository.
func NewPostgresCouponRepository(pool *pgxpool.Pool) *PostgresCouponRepository {
	return &PostgresCouponRepository{pool: pool}
}

// FindByCode looks up a coupon by normalized code, nil when absent.
func (r *PostgresCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT id, code, kind, percent, amount, free_months,
		       max_uses, used_count, max_uses_per_host,
		       valid_from, valid_until, min_amount, min_duration,
		       applicable_plans, active
		FROM coupons
		WHERE code = $1
	`
	var (
		c          domain.Coupon
		kind       domain.CouponKind
		percent    float64
		amount     float64
		freeMonths int
	)
	err := q.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &kind, &percent, &amount, &freeMonths,
		&c.MaxUses, &c.UsedCount, &c.MaxUsesPerHost,
		&c.ValidFrom, &c.ValidUntil, &c.MinAmount, &c.MinDuration,
		&c.ApplicablePlans, &c.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rule, err := ruleFromKind(kind, percent, amount, freeMonths)
	if err != nil {
		return nil, err
	}
	c.Rule = rule
	return &c, nil
}

// CountUsesByHost counts prior redemptions of the coupon by the host.
func (r *PostgresCouponRepository) CountUsesByHost(ctx context.Context, couponID, hostID uuid.UUID) (int, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	var count int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_uses WHERE coupon_id = $1 AND host_id = $2`,
		couponID, hostID).Scan(&count)
	return count, err
}

// CountUses counts all redemptions of the coupon.
func (r *PostgresCouponRepository) CountUses(ctx context.Context, couponID uuid.UUID) (int, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	var count int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_uses WHERE coupon_id = $1`, couponID).Scan(&count)
	return count, err
}

// ConsumeUse increments the coupon's used count behind the max-uses guard
// and records the redemption. The conditional update makes two concurrent
// redemptions at the limit impossible: only one matches the row.
func (r *PostgresCouponRepository) ConsumeUse(ctx context.Context, couponID uuid.UUID, use *domain.CouponUse) error {
	q := sharedPersistence.Executor(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
	`, couponID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCouponExhausted
	}

	_, err = q.Exec(ctx, `
		INSERT INTO coupon_uses (
			id, coupon_id, host_id, order_id,
			discount_applied, original_amount, final_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		use.ID, use.CouponID, use.HostID, use.OrderID,
		use.DiscountApplied, use.OriginalAmount, use.FinalAmount, use.CreatedAt,
	)
	return err
}

func ruleFromKind(kind domain.CouponKind, percent, amount float64, freeMonths int) (domain.CouponRule, error) {
	switch kind {
	case domain.KindPercentage:
		return domain.PercentageRule{Percent: percent}, nil
	case domain.KindFixedAmount:
		return domain.FixedAmountRule{Amount: amount}, nil
	case domain.KindFreeMonths:
		return domain.FreeMonthsRule{Months: freeMonths}, nil
	case domain.KindCustomPlan:
		return domain.CustomPlanRule{}, nil
	default:
		return nil, domain.ErrUnknownCouponKind
	}
}

var _ domain.CouponRepository = (*PostgresCouponRepository)(nil)
