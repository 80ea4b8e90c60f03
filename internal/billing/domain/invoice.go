package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/hostfolio/hostfolio/internal/shared/domain"
)

var (
	ErrInvoiceNotPending = errors.New("invoice is not pending")
	ErrBadInvoiceNumber  = errors.New("malformed invoice number")
)

// PaymentRefPrefix prefixes every payment reference a host types into the
// bank transfer concept field.
const PaymentRefPrefix = "ITN"

// InvoiceDueIn is how long a host has to settle a payment request.
const InvoiceDueIn = 24 * time.Hour

// InvoiceStatus is the settlement state of an invoice.
type InvoiceStatus string

const (
	InvoicePending  InvoiceStatus = "pending"
	InvoicePaid     InvoiceStatus = "paid"
	InvoiceCanceled InvoiceStatus = "canceled"
)

// CouponSnapshot freezes the applied coupon on the invoice so later coupon
// edits cannot change what was billed.
type CouponSnapshot struct {
	Code           string     `json:"code"`
	Kind           CouponKind `json:"kind"`
	DiscountAmount float64    `json:"discount_amount"`
	FreeMonths     int        `json:"free_months,omitempty"`
}

// InvoiceDetails is the structured billing metadata of an invoice.
type InvoiceDetails struct {
	ListingIDs     []uuid.UUID     `json:"listing_ids"`
	ListingNames   []string        `json:"listing_names"`
	DurationMonths int             `json:"duration_months"`
	TierPrice      float64         `json:"tier_price"`
	Coupon         *CouponSnapshot `json:"coupon,omitempty"`
}

// Invoice is a billing record for one payment request.
type Invoice struct {
	sharedDomain.BaseAggregateRoot
	hostID           uuid.UUID
	number           string
	amount           float64
	discountAmount   float64
	finalAmount      float64
	status           InvoiceStatus
	dueDate          time.Time
	paidDate         *time.Time
	paymentMethod    string
	paymentReference string
	details          InvoiceDetails
}

// NewInvoice creates a pending invoice due 24 hours from now.
func NewInvoice(hostID uuid.UUID, number string, quote QuoteBreakdown, method string, details InvoiceDetails, now time.Time) *Invoice {
	inv := &Invoice{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		hostID:            hostID,
		number:            number,
		amount:            quote.BaseAmount,
		discountAmount:    quote.DiscountAmount,
		finalAmount:       quote.FinalAmount,
		status:            InvoicePending,
		dueDate:           now.Add(InvoiceDueIn),
		paymentMethod:     method,
		paymentReference:  PaymentReference(hostID, now),
		details:           details,
	}
	inv.AddDomainEvent(NewInvoiceIssued(inv))
	return inv
}

func (i *Invoice) HostID() uuid.UUID        { return i.hostID }
func (i *Invoice) Number() string           { return i.number }
func (i *Invoice) Amount() float64          { return i.amount }
func (i *Invoice) DiscountAmount() float64  { return i.discountAmount }
func (i *Invoice) FinalAmount() float64     { return i.finalAmount }
func (i *Invoice) Status() InvoiceStatus    { return i.status }
func (i *Invoice) DueDate() time.Time       { return i.dueDate }
func (i *Invoice) PaidDate() *time.Time     { return i.paidDate }
func (i *Invoice) PaymentMethod() string    { return i.paymentMethod }
func (i *Invoice) PaymentReference() string { return i.paymentReference }
func (i *Invoice) Details() InvoiceDetails  { return i.details }

// MarkPaid settles the invoice. Called by the manual reconciliation flow.
func (i *Invoice) MarkPaid(now time.Time) error {
	if i.status != InvoicePending {
		return ErrInvoiceNotPending
	}
	i.status = InvoicePaid
	paid := now
	i.paidDate = &paid
	i.Touch()
	i.AddDomainEvent(NewInvoiceSettled(i))
	return nil
}

// PaymentReference builds the reference a host types into the transfer
// concept field: ITN<unix-ms>-<last 4 of host id, uppercased>.
func PaymentReference(hostID uuid.UUID, at time.Time) string {
	id := hostID.String()
	suffix := strings.ToUpper(id[len(id)-4:])
	return fmt.Sprintf("%s%d-%s", PaymentRefPrefix, at.UnixMilli(), suffix)
}

// NextInvoiceNumber derives the next number in the INV-<year>-<seq>
// series from the last number issued for that year. The sequence resets
// each year; an empty last number starts it.
func NextInvoiceNumber(last string, year int) (string, error) {
	seq := 1
	if last != "" {
		parts := strings.Split(last, "-")
		if len(parts) != 3 || parts[0] != "INV" {
			return "", ErrBadInvoiceNumber
		}
		lastYear, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", ErrBadInvoiceNumber
		}
		lastSeq, err := strconv.Atoi(parts[2])
		if err != nil {
			return "", ErrBadInvoiceNumber
		}
		if lastYear == year {
			seq = lastSeq + 1
		}
	}
	return fmt.Sprintf("INV-%d-%04d", year, seq), nil
}

// RehydrateInvoice recreates an invoice from persisted state without
// generating events.
func RehydrateInvoice(
	id uuid.UUID,
	hostID uuid.UUID,
	number string,
	amount float64,
	discountAmount float64,
	finalAmount float64,
	status InvoiceStatus,
	dueDate time.Time,
	paidDate *time.Time,
	paymentMethod string,
	paymentReference string,
	details InvoiceDetails,
	createdAt time.Time,
	updatedAt time.Time,
) *Invoice {
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &Invoice{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity),
		hostID:            hostID,
		number:            number,
		amount:            amount,
		discountAmount:    discountAmount,
		finalAmount:       finalAmount,
		status:            status,
		dueDate:           dueDate,
		paidDate:          paidDate,
		paymentMethod:     paymentMethod,
		paymentReference:  paymentReference,
		details:           details,
	}
}
