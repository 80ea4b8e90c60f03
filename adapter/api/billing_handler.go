package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/application/commands"
	"github.com/hostfolio/hostfolio/internal/billing/application/services"
)

// BillingHandler handles billing and subscription API requests.
type BillingHandler struct {
	entitlements   *services.EntitlementResolver
	pricing        *services.PricingService
	requestPayment *commands.RequestPaymentHandler
	cancelSub      *commands.CancelSubscriptionHandler
	reactivateSub  *commands.ReactivateSubscriptionHandler
	logger         *slog.Logger
}

// BillingHandlerConfig holds dependencies for the billing handler.
type BillingHandlerConfig struct {
	Entitlements   *services.EntitlementResolver
	Pricing        *services.PricingService
	RequestPayment *commands.RequestPaymentHandler
	CancelSub      *commands.CancelSubscriptionHandler
	ReactivateSub  *commands.ReactivateSubscriptionHandler
	Logger         *slog.Logger
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(cfg BillingHandlerConfig) *BillingHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BillingHandler{
		entitlements:   cfg.Entitlements,
		pricing:        cfg.Pricing,
		requestPayment: cfg.RequestPayment,
		cancelSub:      cfg.CancelSub,
		reactivateSub:  cfg.ReactivateSub,
		logger:         cfg.Logger,
	}
}

// GetEntitlement handles GET /api/v1/hosts/{hostID}/entitlement
func (h *BillingHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	hostID, err := uuid.Parse(r.PathValue("hostID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid host ID")
		return
	}

	ent, err := h.entitlements.Resolve(r.Context(), hostID)
	if err != nil {
		h.logger.Error("resolve entitlement failed", "host_id", hostID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// Quote handles POST /api/v1/billing/quote
func (h *BillingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostID         uuid.UUID `json:"host_id"`
		ListingCount   int       `json:"listing_count"`
		DurationMonths int       `json:"duration_months"`
		CouponCode     string    `json:"coupon_code"`
		PlanCode       string    `json:"plan_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.pricing.Quote(r.Context(), req.HostID, req.ListingCount, req.DurationMonths, req.CouponCode, req.PlanCode)
	if err != nil {
		h.logger.Warn("quote failed", "host_id", req.HostID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// RequestPayment handles POST /api/v1/billing/payment-requests
func (h *BillingHandler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostID         uuid.UUID   `json:"host_id"`
		ListingIDs     []uuid.UUID `json:"listing_ids"`
		DurationMonths int         `json:"duration_months"`
		CouponCode     string      `json:"coupon_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.requestPayment.Handle(r.Context(), commands.RequestPaymentCommand{
		HostID:         req.HostID,
		ListingIDs:     req.ListingIDs,
		DurationMonths: req.DurationMonths,
		CouponCode:     req.CouponCode,
	})
	if err != nil {
		h.logger.Warn("payment request failed", "host_id", req.HostID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// CancelSubscription handles POST /api/v1/hosts/{hostID}/subscription/cancel
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	hostID, err := uuid.Parse(r.PathValue("hostID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid host ID")
		return
	}

	var req struct {
		Reason    string `json:"reason"`
		Immediate bool   `json:"immediate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.cancelSub.Handle(r.Context(), commands.CancelSubscriptionCommand{
		HostID:    hostID,
		Reason:    req.Reason,
		Immediate: req.Immediate,
	})
	if err != nil {
		h.logger.Warn("cancel subscription failed", "host_id", hostID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               sub.Status(),
		"end_date":             sub.EndDate(),
		"cancel_at_period_end": sub.CancelAtPeriodEnd(),
	})
}

// ReactivateSubscription handles POST /api/v1/hosts/{hostID}/subscription/reactivate
func (h *BillingHandler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	hostID, err := uuid.Parse(r.PathValue("hostID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid host ID")
		return
	}

	sub, err := h.reactivateSub.Handle(r.Context(), commands.ReactivateSubscriptionCommand{HostID: hostID})
	if err != nil {
		h.logger.Warn("reactivate subscription failed", "host_id", hostID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               sub.Status(),
		"end_date":             sub.EndDate(),
		"cancel_at_period_end": sub.CancelAtPeriodEnd(),
	})
}
