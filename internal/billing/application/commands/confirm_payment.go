package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	listingDomain "github.com/hostfolio/hostfolio/internal/listing/domain"
	"github.com/hostfolio/hostfolio/internal/notify"
	"github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

// ErrInvoiceNotFound means no invoice matches the given payment reference
// or number.
var ErrInvoiceNotFound = errors.New("invoice not found")

// ListingStore is the slice of the listing repository reconciliation needs.
type ListingStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*listingDomain.Listing, error)
	Update(ctx context.Context, listing *listingDomain.Listing, expected listingDomain.Status) error
}

// ConfirmPaymentCommand settles an invoice after an operator matched an
// incoming bank transfer. Reference accepts the payment reference from the
// transfer concept field or the invoice number.
type ConfirmPaymentCommand struct {
	Reference string
}

// PaymentConfirmation is the outcome of a reconciliation.
type PaymentConfirmation struct {
	Invoice           *domain.Invoice `json:"-"`
	Number            string          `json:"number"`
	Amount            float64         `json:"amount"`
	ListingsActivated int             `json:"listings_activated"`
}

// ConfirmPaymentHandler is the manual reconciliation flow: it settles the
// invoice and moves each covered listing to ACTIVE in one transaction.
type ConfirmPaymentHandler struct {
	invoices domain.InvoiceRepository
	listings ListingStore
	uow      application.UnitOfWork
	outbox   outbox.Repository
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewConfirmPaymentHandler creates a new confirm-payment handler.
func NewConfirmPaymentHandler(
	invoices domain.InvoiceRepository,
	listings ListingStore,
	uow application.UnitOfWork,
	outboxRepo outbox.Repository,
	notifier notify.Notifier,
	logger *slog.Logger,
) *ConfirmPaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfirmPaymentHandler{
		invoices: invoices,
		listings: listings,
		uow:      uow,
		outbox:   outboxRepo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle settles the invoice and activates its listings.
func (h *ConfirmPaymentHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (*PaymentConfirmation, error) {
	now := h.now()

	invoice, err := h.findInvoice(ctx, strings.TrimSpace(cmd.Reference))
	if err != nil {
		return nil, err
	}

	if err := invoice.MarkPaid(now); err != nil {
		return nil, err
	}

	activated := 0
	err = application.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		if err := h.invoices.Update(ctx, invoice); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		msgs, err := outbox.FromEvents(invoice.DomainEvents())
		if err != nil {
			return err
		}
		if err := h.outbox.SaveBatch(ctx, msgs); err != nil {
			return err
		}

		for _, id := range invoice.Details().ListingIDs {
			ok, err := h.activateListing(ctx, id, now)
			if err != nil {
				return err
			}
			if ok {
				activated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	invoice.ClearDomainEvents()

	if err := h.notifier.NotifyHost(ctx, invoice.HostID(), notify.EventPaymentConfirmed, map[string]any{
		"invoice": invoice.Number(),
		"amount":  invoice.FinalAmount(),
	}); err != nil {
		h.logger.Warn("host notification dispatch failed", "host_id", invoice.HostID(), "error", err)
	}

	h.logger.Info("payment confirmed",
		"invoice", invoice.Number(),
		"reference", invoice.PaymentReference(),
		"listings_activated", activated)

	return &PaymentConfirmation{
		Invoice:           invoice,
		Number:            invoice.Number(),
		Amount:            invoice.FinalAmount(),
		ListingsActivated: activated,
	}, nil
}

func (h *ConfirmPaymentHandler) findInvoice(ctx context.Context, reference string) (*domain.Invoice, error) {
	invoice, err := h.invoices.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("load invoice by reference: %w", err)
	}
	if invoice == nil {
		invoice, err = h.invoices.FindByNumber(ctx, reference)
		if err != nil {
			return nil, fmt.Errorf("load invoice by number: %w", err)
		}
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

// activateListing pays one listing. An expiry sweep racing the confirmation
// only moves the listing to SUSPENDED, so a status conflict is resolved by
// reloading and paying again from the new state.
func (h *ConfirmPaymentHandler) activateListing(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		listing, err := h.listings.FindByID(ctx, id)
		if err != nil {
			return false, fmt.Errorf("load listing %s: %w", id, err)
		}
		if listing == nil {
			h.logger.Warn("invoiced listing no longer exists", "listing_id", id)
			return false, nil
		}

		expected := listing.Status()
		if err := listing.MarkPaid(now); err != nil {
			// Already ACTIVE (or back in DRAFT): nothing to settle.
			h.logger.Debug("listing not payable, skipping",
				"listing_id", id, "status", expected)
			return false, nil
		}

		err = h.listings.Update(ctx, listing, expected)
		if err == nil {
			msgs, err := outbox.FromEvents(listing.DomainEvents())
			if err != nil {
				return false, err
			}
			if err := h.outbox.SaveBatch(ctx, msgs); err != nil {
				return false, err
			}
			listing.ClearDomainEvents()
			return true, nil
		}
		if !errors.Is(err, listingDomain.ErrStatusConflict) {
			return false, fmt.Errorf("update listing %s: %w", id, err)
		}
	}
	return false, fmt.Errorf("update listing %s: %w", id, listingDomain.ErrStatusConflict)
}
