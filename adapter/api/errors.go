package api

import (
	"errors"
	"net/http"

	billingCommands "github.com/hostfolio/hostfolio/internal/billing/application/commands"
	billingDomain "github.com/hostfolio/hostfolio/internal/billing/domain"
	listingCommands "github.com/hostfolio/hostfolio/internal/listing/application/commands"
	"github.com/hostfolio/hostfolio/internal/listing/application/services"
	listingDomain "github.com/hostfolio/hostfolio/internal/listing/domain"
)

// statusFor maps domain sentinels to HTTP status codes. Anything unmapped
// is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, listingCommands.ErrListingNotFound),
		errors.Is(err, billingCommands.ErrInvoiceNotFound),
		errors.Is(err, billingDomain.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, listingCommands.ErrNotListingOwner):
		return http.StatusForbidden
	case errors.Is(err, listingCommands.ErrQuotaExceeded),
		errors.Is(err, billingDomain.ErrCouponExhausted),
		errors.Is(err, billingDomain.ErrCouponHostLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, listingDomain.ErrAlreadyMonetized),
		errors.Is(err, listingDomain.ErrInvalidTransition),
		errors.Is(err, listingDomain.ErrStatusConflict),
		errors.Is(err, billingDomain.ErrInvoiceNotPending),
		errors.Is(err, services.ErrSweepInProgress):
		return http.StatusConflict
	case errors.Is(err, listingDomain.ErrListingEmptyName),
		errors.Is(err, billingDomain.ErrInvalidCount),
		errors.Is(err, billingDomain.ErrInvalidDuration),
		errors.Is(err, billingDomain.ErrCouponInactive),
		errors.Is(err, billingDomain.ErrCouponNotStarted),
		errors.Is(err, billingDomain.ErrCouponExpired),
		errors.Is(err, billingDomain.ErrCouponMinDuration),
		errors.Is(err, billingDomain.ErrCouponMinAmount),
		errors.Is(err, billingDomain.ErrCouponPlanScope),
		errors.Is(err, billingDomain.ErrNoActiveSubscription),
		errors.Is(err, billingDomain.ErrNothingToReactivate),
		errors.Is(err, billingCommands.ErrNothingToBill),
		errors.Is(err, billingCommands.ErrManualReviewRequired):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps err to a status and writes it. Internal errors are
// masked; everything else surfaces its message.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
