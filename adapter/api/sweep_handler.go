package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hostfolio/hostfolio/internal/listing/application/services"
)

// SweepTokenHeader carries the shared secret that guards the internal
// endpoints.
const SweepTokenHeader = "X-Sweep-Token"

// SweepHandler exposes the trial sweep to the scheduler that drives it.
type SweepHandler struct {
	sweeper *services.TrialSweeper
	token   string
	logger  *slog.Logger
}

// NewSweepHandler creates a new sweep handler. An empty token rejects all
// requests.
func NewSweepHandler(sweeper *services.TrialSweeper, token string, logger *slog.Logger) *SweepHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepHandler{sweeper: sweeper, token: token, logger: logger}
}

// Run handles POST /internal/sweep
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SweepTokenHeader)
	if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid sweep token")
		return
	}

	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("sweep failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
