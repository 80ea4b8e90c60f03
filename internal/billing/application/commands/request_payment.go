package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/application/services"
	"github.com/hostfolio/hostfolio/internal/billing/domain"
	listingDomain "github.com/hostfolio/hostfolio/internal/listing/domain"
	"github.com/hostfolio/hostfolio/internal/notify"
	"github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

var (
	// ErrNothingToBill means none of the requested listings is payable:
	// none is owned and in TRIAL or SUSPENDED, or the only one left is the
	// host's free first listing.
	ErrNothingToBill = errors.New("no billable listings in the request")

	// ErrManualReviewRequired is returned for CUSTOM_PLAN coupons, which
	// cannot be settled by bank transfer; an operator takes over.
	ErrManualReviewRequired = errors.New("coupon requires manual review, contact support")
)

// PaymentMethodBankTransfer is the only settlement method currently wired.
const PaymentMethodBankTransfer = "bank_transfer"

// ListingSource is the slice of the listing repository the billing
// orchestrator needs.
type ListingSource interface {
	FindOwnedByIDs(ctx context.Context, hostID uuid.UUID, ids []uuid.UUID) ([]*listingDomain.Listing, error)
	CountActiveByHost(ctx context.Context, hostID uuid.UUID) (int, error)
}

// RequestPaymentCommand asks for a payment request covering a set of the
// host's listings.
type RequestPaymentCommand struct {
	HostID         uuid.UUID
	ListingIDs     []uuid.UUID
	DurationMonths int
	CouponCode     string
}

// PaymentRequest is the outcome handed back to the host.
type PaymentRequest struct {
	Invoice      *domain.Invoice       `json:"-"`
	Number       string                `json:"number"`
	Reference    string                `json:"reference"`
	Quote        domain.QuoteBreakdown `json:"quote"`
	DueDate      time.Time             `json:"due_date"`
	Instructions string                `json:"instructions"`
}

// RequestPaymentHandler orchestrates a payment request: it filters the
// billable listings, prices them, issues a pending invoice and redeems the
// coupon in one transaction, then notifies both sides.
type RequestPaymentHandler struct {
	listings      ListingSource
	subscriptions domain.SubscriptionRepository
	invoices      domain.InvoiceRepository
	coupons       domain.CouponRepository
	pricing       *services.PricingService
	uow           application.UnitOfWork
	outbox        outbox.Repository
	notifier      notify.Notifier
	instructions  string
	logger        *slog.Logger
	now           func() time.Time
}

// NewRequestPaymentHandler creates a new request-payment handler.
// instructions is the static bank-transfer text shown to hosts.
func NewRequestPaymentHandler(
	listings ListingSource,
	subscriptions domain.SubscriptionRepository,
	invoices domain.InvoiceRepository,
	coupons domain.CouponRepository,
	pricing *services.PricingService,
	uow application.UnitOfWork,
	outboxRepo outbox.Repository,
	notifier notify.Notifier,
	instructions string,
	logger *slog.Logger,
) *RequestPaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestPaymentHandler{
		listings:      listings,
		subscriptions: subscriptions,
		invoices:      invoices,
		coupons:       coupons,
		pricing:       pricing,
		uow:           uow,
		outbox:        outboxRepo,
		notifier:      notifier,
		instructions:  instructions,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle creates the payment request.
func (h *RequestPaymentHandler) Handle(ctx context.Context, cmd RequestPaymentCommand) (*PaymentRequest, error) {
	now := h.now()

	billable, err := h.billableListings(ctx, cmd)
	if err != nil {
		return nil, err
	}

	// The host's first listing rides free: while nothing is ACTIVE yet,
	// one of the requested listings is excluded from the bill.
	activeCount, err := h.listings.CountActiveByHost(ctx, cmd.HostID)
	if err != nil {
		return nil, fmt.Errorf("count active listings: %w", err)
	}
	billableCount := len(billable)
	if activeCount == 0 {
		billableCount--
	}
	if billableCount < 1 {
		return nil, fmt.Errorf("%w: the first listing is free", ErrNothingToBill)
	}

	planCode := ""
	if sub, err := h.subscriptions.FindCurrentByHost(ctx, cmd.HostID, now); err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	} else if sub != nil {
		planCode = sub.PlanCode()
	}

	quote, coupon, err := h.pricing.QuoteWithCoupon(ctx, cmd.HostID, billableCount, cmd.DurationMonths, cmd.CouponCode, planCode)
	if err != nil {
		return nil, err
	}
	if quote.RequiresManualReview {
		if err := h.notifier.NotifyOperators(ctx, "custom_plan_requested", map[string]any{
			"host_id":     cmd.HostID,
			"coupon_code": domain.NormalizeCode(cmd.CouponCode),
		}); err != nil {
			h.logger.Warn("operator notification dispatch failed", "error", err)
		}
		return nil, ErrManualReviewRequired
	}

	number, err := h.nextNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	details := domain.InvoiceDetails{
		ListingIDs:     listingIDs(billable),
		ListingNames:   listingNames(billable),
		DurationMonths: cmd.DurationMonths,
		TierPrice:      quote.PricePerListing,
	}
	if coupon != nil {
		details.Coupon = &domain.CouponSnapshot{
			Code:           coupon.Code,
			Kind:           coupon.Rule.Kind(),
			DiscountAmount: quote.DiscountAmount,
			FreeMonths:     quote.FreeMonthsGranted,
		}
	}

	invoice := domain.NewInvoice(cmd.HostID, number, quote, PaymentMethodBankTransfer, details, now)

	err = application.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		if err := h.invoices.Save(ctx, invoice); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		if coupon != nil {
			use := domain.NewCouponUse(coupon.ID, cmd.HostID, invoice.ID(),
				quote.DiscountAmount, quote.BaseAmount, quote.FinalAmount)
			if err := h.coupons.ConsumeUse(ctx, coupon.ID, use); err != nil {
				return fmt.Errorf("redeem coupon %s: %w", coupon.Code, err)
			}
		}
		msgs, err := outbox.FromEvents(invoice.DomainEvents())
		if err != nil {
			return err
		}
		return h.outbox.SaveBatch(ctx, msgs)
	})
	if err != nil {
		return nil, err
	}
	invoice.ClearDomainEvents()

	h.notify(ctx, cmd.HostID, invoice)

	h.logger.Info("payment requested",
		"host_id", cmd.HostID,
		"invoice", invoice.Number(),
		"reference", invoice.PaymentReference(),
		"amount", invoice.FinalAmount())

	return &PaymentRequest{
		Invoice:      invoice,
		Number:       invoice.Number(),
		Reference:    invoice.PaymentReference(),
		Quote:        quote,
		DueDate:      invoice.DueDate(),
		Instructions: h.instructions,
	}, nil
}

func (h *RequestPaymentHandler) billableListings(ctx context.Context, cmd RequestPaymentCommand) ([]*listingDomain.Listing, error) {
	owned, err := h.listings.FindOwnedByIDs(ctx, cmd.HostID, cmd.ListingIDs)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}

	billable := make([]*listingDomain.Listing, 0, len(owned))
	for _, l := range owned {
		if l.Status() == listingDomain.StatusTrial || l.Status() == listingDomain.StatusSuspended {
			billable = append(billable, l)
		}
	}
	if len(billable) == 0 {
		return nil, ErrNothingToBill
	}
	return billable, nil
}

func (h *RequestPaymentHandler) nextNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	last, err := h.invoices.LastNumberForYear(ctx, year)
	if err != nil {
		return "", fmt.Errorf("load last invoice number: %w", err)
	}
	number, err := domain.NextInvoiceNumber(last, year)
	if err != nil {
		return "", err
	}
	return number, nil
}

func (h *RequestPaymentHandler) notify(ctx context.Context, hostID uuid.UUID, invoice *domain.Invoice) {
	if err := h.notifier.NotifyHost(ctx, hostID, notify.EventPaymentRequested, map[string]any{
		"invoice":      invoice.Number(),
		"reference":    invoice.PaymentReference(),
		"amount":       invoice.FinalAmount(),
		"due_date":     invoice.DueDate(),
		"instructions": h.instructions,
	}); err != nil {
		h.logger.Warn("host notification dispatch failed", "host_id", hostID, "error", err)
	}
	if err := h.notifier.NotifyOperators(ctx, "payment_requested", map[string]any{
		"host_id":   hostID,
		"invoice":   invoice.Number(),
		"reference": invoice.PaymentReference(),
		"amount":    invoice.FinalAmount(),
	}); err != nil {
		h.logger.Warn("operator notification dispatch failed", "error", err)
	}
}

func listingIDs(listings []*listingDomain.Listing) []uuid.UUID {
	ids := make([]uuid.UUID, len(listings))
	for i, l := range listings {
		ids[i] = l.ID()
	}
	return ids
}

func listingNames(listings []*listingDomain.Listing) []string {
	names := make([]string, len(listings))
	for i, l := range listings {
		names[i] = l.Name()
	}
	return names
}
