package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/listing/application/commands"
	"github.com/hostfolio/hostfolio/internal/listing/domain"
)

// ListingHandler handles listing API requests.
type ListingHandler struct {
	createListing   *commands.CreateListingHandler
	activateListing *commands.ActivateListingHandler
	logger          *slog.Logger
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(
	createListing *commands.CreateListingHandler,
	activateListing *commands.ActivateListingHandler,
	logger *slog.Logger,
) *ListingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingHandler{
		createListing:   createListing,
		activateListing: activateListing,
		logger:          logger,
	}
}

type listingResponse struct {
	ID          uuid.UUID     `json:"id"`
	HostID      uuid.UUID     `json:"host_id"`
	Name        string        `json:"name"`
	Status      domain.Status `json:"status"`
	TrialEndsAt *time.Time    `json:"trial_ends_at,omitempty"`
	IsPublished bool          `json:"is_published"`
}

func toListingResponse(l *domain.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID(),
		HostID:      l.HostID(),
		Name:        l.Name(),
		Status:      l.Status(),
		TrialEndsAt: l.TrialEndsAt(),
		IsPublished: l.IsPublished(),
	}
}

// CreateListing handles POST /api/v1/hosts/{hostID}/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	hostID, err := uuid.Parse(r.PathValue("hostID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid host ID")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	listing, err := h.createListing.Handle(r.Context(), commands.CreateListingCommand{
		HostID: hostID,
		Name:   req.Name,
	})
	if err != nil {
		h.logger.Warn("create listing failed", "host_id", hostID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingResponse(listing))
}

// ActivateListing handles POST /api/v1/hosts/{hostID}/listings/{listingID}/activate
func (h *ListingHandler) ActivateListing(w http.ResponseWriter, r *http.Request) {
	hostID, err := uuid.Parse(r.PathValue("hostID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid host ID")
		return
	}
	listingID, err := uuid.Parse(r.PathValue("listingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	listing, err := h.activateListing.Handle(r.Context(), commands.ActivateListingCommand{
		HostID:    hostID,
		ListingID: listingID,
	})
	if err != nil {
		h.logger.Warn("activate listing failed", "listing_id", listingID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}
