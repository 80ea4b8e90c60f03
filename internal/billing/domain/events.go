package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/hostfolio/hostfolio/internal/shared/domain"
)

const (
	subscriptionAggregate = "Subscription"
	invoiceAggregate      = "Invoice"
)

// SubscriptionStarted is emitted when a subscription becomes active.
type SubscriptionStarted struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	HostID         uuid.UUID `json:"host_id"`
	PlanCode       string    `json:"plan_code,omitempty"`
	EndDate        time.Time `json:"end_date"`
}

// NewSubscriptionStarted creates a SubscriptionStarted event.
func NewSubscriptionStarted(s *Subscription) *SubscriptionStarted {
	return &SubscriptionStarted{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), subscriptionAggregate, "billing.subscription.started"),
		SubscriptionID: s.ID(),
		HostID:         s.HostID(),
		PlanCode:       s.PlanCode(),
		EndDate:        s.EndDate(),
	}
}

// SubscriptionCancelScheduled is emitted when cancellation is deferred to
// the period end.
type SubscriptionCancelScheduled struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	HostID         uuid.UUID `json:"host_id"`
	EndDate        time.Time `json:"end_date"`
	Reason         string    `json:"reason,omitempty"`
}

// NewSubscriptionCancelScheduled creates a SubscriptionCancelScheduled event.
func NewSubscriptionCancelScheduled(s *Subscription) *SubscriptionCancelScheduled {
	return &SubscriptionCancelScheduled{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), subscriptionAggregate, "billing.subscription.cancel_scheduled"),
		SubscriptionID: s.ID(),
		HostID:         s.HostID(),
		EndDate:        s.EndDate(),
		Reason:         s.CancelReason(),
	}
}

// SubscriptionEnded is emitted when a subscription ends.
type SubscriptionEnded struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	HostID         uuid.UUID `json:"host_id"`
	Immediate      bool      `json:"immediate"`
	Reason         string    `json:"reason,omitempty"`
}

// NewSubscriptionEnded creates a SubscriptionEnded event.
func NewSubscriptionEnded(s *Subscription, immediate bool) *SubscriptionEnded {
	return &SubscriptionEnded{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), subscriptionAggregate, "billing.subscription.canceled"),
		SubscriptionID: s.ID(),
		HostID:         s.HostID(),
		Immediate:      immediate,
		Reason:         s.CancelReason(),
	}
}

// SubscriptionReactivated is emitted when a scheduled cancellation is
// cleared.
type SubscriptionReactivated struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	HostID         uuid.UUID `json:"host_id"`
	EndDate        time.Time `json:"end_date"`
}

// NewSubscriptionReactivated creates a SubscriptionReactivated event.
func NewSubscriptionReactivated(s *Subscription) *SubscriptionReactivated {
	return &SubscriptionReactivated{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), subscriptionAggregate, "billing.subscription.reactivated"),
		SubscriptionID: s.ID(),
		HostID:         s.HostID(),
		EndDate:        s.EndDate(),
	}
}

// InvoiceIssued is emitted when a pending invoice is created.
type InvoiceIssued struct {
	sharedDomain.BaseEvent
	InvoiceID        uuid.UUID `json:"invoice_id"`
	HostID           uuid.UUID `json:"host_id"`
	Number           string    `json:"number"`
	FinalAmount      float64   `json:"final_amount"`
	DueDate          time.Time `json:"due_date"`
	PaymentReference string    `json:"payment_reference"`
}

// NewInvoiceIssued creates an InvoiceIssued event.
func NewInvoiceIssued(i *Invoice) *InvoiceIssued {
	return &InvoiceIssued{
		BaseEvent:        sharedDomain.NewBaseEvent(i.ID(), invoiceAggregate, "billing.invoice.issued"),
		InvoiceID:        i.ID(),
		HostID:           i.HostID(),
		Number:           i.Number(),
		FinalAmount:      i.FinalAmount(),
		DueDate:          i.DueDate(),
		PaymentReference: i.PaymentReference(),
	}
}

// InvoiceSettled is emitted when reconciliation settles an invoice.
type InvoiceSettled struct {
	sharedDomain.BaseEvent
	InvoiceID uuid.UUID `json:"invoice_id"`
	HostID    uuid.UUID `json:"host_id"`
	Number    string    `json:"number"`
	Amount    float64   `json:"amount"`
}

// NewInvoiceSettled creates an InvoiceSettled event.
func NewInvoiceSettled(i *Invoice) *InvoiceSettled {
	return &InvoiceSettled{
		BaseEvent: sharedDomain.NewBaseEvent(i.ID(), invoiceAggregate, "billing.invoice.paid"),
		InvoiceID: i.ID(),
		HostID:    i.HostID(),
		Number:    i.Number(),
		Amount:    i.FinalAmount(),
	}
}
