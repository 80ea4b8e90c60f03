package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
)

// MemoryCouponRepository implements domain.CouponRepository in memory.
// ConsumeUse holds the repository mutex across the guard check and the
// increment, giving the same no-oversell property as the SQL conditional
// update. Used by tests and local mode.
type MemoryCouponRepository struct {
	mu      sync.Mutex
	coupons map[string]*domain.Coupon
	uses    []*domain.CouponUse
}

// NewMemoryCouponRepository creates an empty in-memory coupon repository.
func NewMemoryCouponRepository() *MemoryCouponRepository {
	return &MemoryCouponRepository{coupons: make(map[string]*domain.Coupon)}
}

// Put registers a coupon under its normalized code.
func (r *MemoryCouponRepository) Put(coupon *domain.Coupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[domain.NormalizeCode(coupon.Code)] = coupon
}

func (r *MemoryCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[code]
	if !ok {
		return nil, nil
	}
	c := *coupon
	return &c, nil
}

func (r *MemoryCouponRepository) CountUsesByHost(ctx context.Context, couponID, hostID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, use := range r.uses {
		if use.CouponID == couponID && use.HostID == hostID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryCouponRepository) CountUses(ctx context.Context, couponID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, use := range r.uses {
		if use.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryCouponRepository) ConsumeUse(ctx context.Context, couponID uuid.UUID, use *domain.CouponUse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, coupon := range r.coupons {
		if coupon.ID != couponID {
			continue
		}
		if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
			return domain.ErrCouponExhausted
		}
		coupon.UsedCount++
		r.uses = append(r.uses, use)
		return nil
	}
	return domain.ErrCouponNotFound
}

// MemoryInvoiceRepository implements domain.InvoiceRepository in memory.
type MemoryInvoiceRepository struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*domain.Invoice
}

// NewMemoryInvoiceRepository creates an empty in-memory invoice repository.
func NewMemoryInvoiceRepository() *MemoryInvoiceRepository {
	return &MemoryInvoiceRepository{invoices: make(map[uuid.UUID]*domain.Invoice)}
}

func (r *MemoryInvoiceRepository) Save(ctx context.Context, invoice *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[invoice.ID()] = invoice
	return nil
}

func (r *MemoryInvoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[invoice.ID()] = invoice
	return nil
}

func (r *MemoryInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[id], nil
}

func (r *MemoryInvoiceRepository) FindByReference(ctx context.Context, reference string) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, invoice := range r.invoices {
		if invoice.PaymentReference() == reference {
			return invoice, nil
		}
	}
	return nil, nil
}

func (r *MemoryInvoiceRepository) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, invoice := range r.invoices {
		if invoice.Number() == number {
			return invoice, nil
		}
	}
	return nil, nil
}

func (r *MemoryInvoiceRepository) LastNumberForYear(ctx context.Context, year int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := fmt.Sprintf("INV-%d-", year)
	var numbers []string
	for _, invoice := range r.invoices {
		if strings.HasPrefix(invoice.Number(), prefix) {
			numbers = append(numbers, invoice.Number())
		}
	}
	if len(numbers) == 0 {
		return "", nil
	}
	sort.Strings(numbers)
	return numbers[len(numbers)-1], nil
}

func (r *MemoryInvoiceRepository) CancelOverdue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var canceled int64
	for id, invoice := range r.invoices {
		if invoice.Status() != domain.InvoicePending || !invoice.DueDate().Before(now) {
			continue
		}
		r.invoices[id] = domain.RehydrateInvoice(
			invoice.ID(), invoice.HostID(), invoice.Number(),
			invoice.Amount(), invoice.DiscountAmount(), invoice.FinalAmount(),
			domain.InvoiceCanceled, invoice.DueDate(), invoice.PaidDate(),
			invoice.PaymentMethod(), invoice.PaymentReference(), invoice.Details(),
			invoice.CreatedAt(), now)
		canceled++
	}
	return canceled, nil
}

// MemorySubscriptionRepository implements domain.SubscriptionRepository in
// memory.
type MemorySubscriptionRepository struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*domain.Subscription
}

// NewMemorySubscriptionRepository creates an empty in-memory subscription
// repository.
func NewMemorySubscriptionRepository() *MemorySubscriptionRepository {
	return &MemorySubscriptionRepository{subs: make(map[uuid.UUID]*domain.Subscription)}
}

func (r *MemorySubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID()] = sub
	return nil
}

func (r *MemorySubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID()] = sub
	return nil
}

func (r *MemorySubscriptionRepository) FindCurrentByHost(ctx context.Context, hostID uuid.UUID, now time.Time) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current *domain.Subscription
	for _, sub := range r.subs {
		if sub.HostID() != hostID || !sub.IsCurrent(now) {
			continue
		}
		if current == nil || sub.EndDate().After(current.EndDate()) {
			current = sub
		}
	}
	return current, nil
}

// MemoryAccountRepository implements domain.AccountRepository in memory.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]domain.HostAccount
}

// NewMemoryAccountRepository creates an empty in-memory account repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[uuid.UUID]domain.HostAccount)}
}

// Put registers an account.
func (r *MemoryAccountRepository) Put(account domain.HostAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
}

func (r *MemoryAccountRepository) FindByID(ctx context.Context, hostID uuid.UUID) (*domain.HostAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[hostID]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

var (
	_ domain.CouponRepository       = (*MemoryCouponRepository)(nil)
	_ domain.InvoiceRepository      = (*MemoryInvoiceRepository)(nil)
	_ domain.SubscriptionRepository = (*MemorySubscriptionRepository)(nil)
	_ domain.AccountRepository      = (*MemoryAccountRepository)(nil)
)
