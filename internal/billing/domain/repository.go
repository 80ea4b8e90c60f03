package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error

	// FindCurrentByHost returns the host's ACTIVE subscription with
	// endDate >= now, or nil when there is none.
	FindCurrentByHost(ctx context.Context, hostID uuid.UUID, now time.Time) (*Subscription, error)
}

// PlanRepository reads the immutable plan catalog.
type PlanRepository interface {
	FindByCode(ctx context.Context, code string) (*Plan, error)
	FindAll(ctx context.Context) ([]Plan, error)
}

// TierRepository reads the pricing tier table.
type TierRepository interface {
	TierTable(ctx context.Context) (TierTable, error)
}

// CouponRepository persists coupons and their redemptions.
type CouponRepository interface {
	// FindByCode looks up a coupon by normalized code, nil when absent.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// CountUsesByHost counts prior redemptions of the coupon by the host.
	CountUsesByHost(ctx context.Context, couponID, hostID uuid.UUID) (int, error)

	// CountUses counts all redemptions of the coupon.
	CountUses(ctx context.Context, couponID uuid.UUID) (int, error)

	// ConsumeUse atomically increments the coupon's used count, guarded by
	// its max-uses limit, and inserts the redemption record. It returns
	// ErrCouponExhausted when the guard fails, so two concurrent
	// redemptions at the limit cannot both succeed.
	ConsumeUse(ctx context.Context, couponID uuid.UUID, use *CouponUse) error
}

// InvoiceRepository persists invoices.
type InvoiceRepository interface {
	Save(ctx context.Context, invoice *Invoice) error
	Update(ctx context.Context, invoice *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByReference looks up an invoice by the payment reference the host
	// put in the transfer, nil when absent.
	FindByReference(ctx context.Context, reference string) (*Invoice, error)

	// FindByNumber looks up an invoice by its number, nil when absent.
	FindByNumber(ctx context.Context, number string) (*Invoice, error)

	// LastNumberForYear returns the highest invoice number issued in the
	// year, or empty when none was. The yearly sequence is derived from
	// it rather than kept in a counter table.
	LastNumberForYear(ctx context.Context, year int) (string, error)

	// CancelOverdue cancels PENDING invoices whose due date has passed and
	// returns how many were affected.
	CancelOverdue(ctx context.Context, now time.Time) (int64, error)
}

// AccountRepository reads host accounts. Accounts are owned by the
// identity service; the engine only consults the trial window.
type AccountRepository interface {
	FindByID(ctx context.Context, hostID uuid.UUID) (*HostAccount, error)
}
