package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	billingCommands "github.com/hostfolio/hostfolio/internal/billing/application/commands"
)

// ReconcileHandler exposes manual payment reconciliation to operators. It
// shares the internal token with the sweep endpoint.
type ReconcileHandler struct {
	confirm *billingCommands.ConfirmPaymentHandler
	token   string
	logger  *slog.Logger
}

// NewReconcileHandler creates a new reconcile handler. An empty token
// rejects all requests.
func NewReconcileHandler(confirm *billingCommands.ConfirmPaymentHandler, token string, logger *slog.Logger) *ReconcileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{confirm: confirm, token: token, logger: logger}
}

type confirmPaymentRequest struct {
	Reference string `json:"reference"`
}

// ConfirmPayment handles POST /internal/payments/confirm
func (h *ReconcileHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SweepTokenHeader)
	if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid sweep token")
		return
	}

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}

	result, err := h.confirm.Handle(r.Context(), billingCommands.ConfirmPaymentCommand{
		Reference: req.Reference,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
