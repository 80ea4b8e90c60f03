package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// BreakerNotifier wraps a Notifier with a circuit breaker so a flapping
// delivery service cannot stall sweeps. Failures are still returned to the
// caller; the breaker only short-circuits once the service is clearly down.
type BreakerNotifier struct {
	inner   Notifier
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewBreakerNotifier wraps inner with a circuit breaker.
func NewBreakerNotifier(inner Notifier, logger *slog.Logger) *BreakerNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &BreakerNotifier{inner: inner, logger: logger}
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notifier circuit state changed", "from", from.String(), "to", to.String())
		},
	})
	return n
}

func (n *BreakerNotifier) NotifyHost(ctx context.Context, hostID uuid.UUID, event string, payload map[string]any) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.inner.NotifyHost(ctx, hostID, event, payload)
	})
	return err
}

func (n *BreakerNotifier) NotifyOperators(ctx context.Context, event string, payload map[string]any) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.inner.NotifyOperators(ctx, event, payload)
	})
	return err
}
