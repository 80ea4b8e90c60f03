package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	listingDomain "github.com/hostfolio/hostfolio/internal/listing/domain"
	listingPersistence "github.com/hostfolio/hostfolio/internal/listing/infrastructure/persistence"
	"github.com/hostfolio/hostfolio/internal/notify"
)

func newConfirmHandler(f *paymentFixture) *ConfirmPaymentHandler {
	h := NewConfirmPaymentHandler(f.invoices, f.listings, noopUnitOfWork{}, f.outbox, f.notifier, nil)
	h.now = func() time.Time { return f.now }
	return h
}

// issueInvoice runs a payment request and returns its outcome.
func issueInvoice(t *testing.T, f *paymentFixture, hostID uuid.UUID, listingIDs []uuid.UUID) *PaymentRequest {
	t.Helper()
	result, err := f.handler.Handle(context.Background(), RequestPaymentCommand{
		HostID:         hostID,
		ListingIDs:     listingIDs,
		DurationMonths: 1,
	})
	require.NoError(t, err)
	return result
}

func TestConfirmPayment_SettlesInvoiceAndActivatesListings(t *testing.T) {
	f := newPaymentFixture(t)
	hostID := uuid.New()
	f.seedListing(t, hostID, "Old tour", listingDomain.StatusActive)
	trial := f.seedListing(t, hostID, "New tour", listingDomain.StatusTrial)
	suspended := f.seedListing(t, hostID, "Lapsed tour", listingDomain.StatusSuspended)

	request := issueInvoice(t, f, hostID, []uuid.UUID{trial.ID(), suspended.ID()})

	confirmation, err := newConfirmHandler(f).Handle(context.Background(), ConfirmPaymentCommand{
		Reference: request.Reference,
	})
	require.NoError(t, err)
	assert.Equal(t, request.Number, confirmation.Number)
	assert.Equal(t, 2, confirmation.ListingsActivated)

	invoice, err := f.invoices.FindByReference(context.Background(), request.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, invoice.Status())
	require.NotNil(t, invoice.PaidDate())
	assert.Equal(t, f.now, *invoice.PaidDate())

	for _, id := range []uuid.UUID{trial.ID(), suspended.ID()} {
		listing, err := f.listings.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, listingDomain.StatusActive, listing.Status())
		assert.True(t, listing.IsPublished())
	}

	var keys []string
	for _, msg := range f.outbox.All() {
		keys = append(keys, msg.RoutingKey)
	}
	assert.Contains(t, keys, "billing.invoice.paid")
	assert.Contains(t, keys, "listings.listing.activated")

	require.NotEmpty(t, f.notifier.hosts)
	last := f.notifier.hosts[len(f.notifier.hosts)-1]
	assert.Equal(t, notify.EventPaymentConfirmed, last.event)
	assert.Equal(t, request.Number, last.payload["invoice"])
}

func TestConfirmPayment_LooksUpByInvoiceNumber(t *testing.T) {
	f := newPaymentFixture(t)
	hostID := uuid.New()
	f.seedListing(t, hostID, "Old tour", listingDomain.StatusActive)
	trial := f.seedListing(t, hostID, "New tour", listingDomain.StatusTrial)

	request := issueInvoice(t, f, hostID, []uuid.UUID{trial.ID()})

	confirmation, err := newConfirmHandler(f).Handle(context.Background(), ConfirmPaymentCommand{
		Reference: request.Number,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, confirmation.ListingsActivated)
}

func TestConfirmPayment_UnknownReference(t *testing.T) {
	f := newPaymentFixture(t)

	_, err := newConfirmHandler(f).Handle(context.Background(), ConfirmPaymentCommand{
		Reference: "ITN123-ABCD",
	})
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestConfirmPayment_AlreadySettled(t *testing.T) {
	f := newPaymentFixture(t)
	hostID := uuid.New()
	f.seedListing(t, hostID, "Old tour", listingDomain.StatusActive)
	trial := f.seedListing(t, hostID, "New tour", listingDomain.StatusTrial)

	request := issueInvoice(t, f, hostID, []uuid.UUID{trial.ID()})
	handler := newConfirmHandler(f)

	_, err := handler.Handle(context.Background(), ConfirmPaymentCommand{Reference: request.Reference})
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), ConfirmPaymentCommand{Reference: request.Reference})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotPending)
}

func TestConfirmPayment_MissingListingIsSkipped(t *testing.T) {
	f := newPaymentFixture(t)
	hostID := uuid.New()

	// The invoice references a listing that has since been deleted.
	reference := "ITN1767225600000-ABCD"
	invoice := domain.RehydrateInvoice(
		uuid.New(), hostID, "INV-2026-0042", 2.50, 0, 2.50,
		domain.InvoicePending, f.now.Add(24*time.Hour), nil,
		PaymentMethodBankTransfer, reference,
		domain.InvoiceDetails{ListingIDs: []uuid.UUID{uuid.New()}, DurationMonths: 1},
		f.now, f.now,
	)
	require.NoError(t, f.invoices.Save(context.Background(), invoice))

	confirmation, err := newConfirmHandler(f).Handle(context.Background(), ConfirmPaymentCommand{
		Reference: reference,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, confirmation.ListingsActivated)

	settled, err := f.invoices.FindByReference(context.Background(), reference)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, settled.Status())
}

// contendedListingStore reports a status conflict on the first update, as a
// concurrent sweep pass would, then behaves normally.
type contendedListingStore struct {
	*listingPersistence.MemoryRepository
	conflicts int
}

func (s *contendedListingStore) Update(ctx context.Context, listing *listingDomain.Listing, expected listingDomain.Status) error {
	if s.conflicts > 0 {
		s.conflicts--
		return listingDomain.ErrStatusConflict
	}
	return s.MemoryRepository.Update(ctx, listing, expected)
}

func TestConfirmPayment_RetriesOnStatusConflict(t *testing.T) {
	f := newPaymentFixture(t)
	hostID := uuid.New()
	f.seedListing(t, hostID, "Old tour", listingDomain.StatusActive)
	trial := f.seedListing(t, hostID, "New tour", listingDomain.StatusTrial)

	request := issueInvoice(t, f, hostID, []uuid.UUID{trial.ID()})

	handler := newConfirmHandler(f)
	handler.listings = &contendedListingStore{MemoryRepository: f.listings, conflicts: 1}

	confirmation, err := handler.Handle(context.Background(), ConfirmPaymentCommand{
		Reference: request.Reference,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, confirmation.ListingsActivated)

	listing, err := f.listings.FindByID(context.Background(), trial.ID())
	require.NoError(t, err)
	assert.Equal(t, listingDomain.StatusActive, listing.Status())
}

func TestConfirmPayment_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newPaymentFixture(t)
	hostID := uuid.New()
	f.seedListing(t, hostID, "Old tour", listingDomain.StatusActive)
	trial := f.seedListing(t, hostID, "New tour", listingDomain.StatusTrial)

	request := issueInvoice(t, f, hostID, []uuid.UUID{trial.ID()})

	handler := newConfirmHandler(f)
	handler.listings = &contendedListingStore{MemoryRepository: f.listings, conflicts: 2}

	_, err := handler.Handle(context.Background(), ConfirmPaymentCommand{
		Reference: request.Reference,
	})
	assert.ErrorIs(t, err, listingDomain.ErrStatusConflict)
}
