// Package notify is the port to the outbound notification collaborator.
// Delivery (email, push) is owned by an external service; the engine only
// hands over structured notification requests.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/eventbus"
)

// Notifier dispatches notifications to hosts and operators.
type Notifier interface {
	NotifyHost(ctx context.Context, hostID uuid.UUID, event string, payload map[string]any) error
	NotifyOperators(ctx context.Context, event string, payload map[string]any) error
}

// Host notification events.
const (
	EventTrialWarning     = "trial_warning"
	EventTrialExpired     = "trial_expired"
	EventPaymentRequested = "payment_requested"
	EventPaymentConfirmed = "payment_confirmed"
)

// BusNotifier publishes notification requests on the event bus for the
// delivery service to consume.
type BusNotifier struct {
	publisher eventbus.Publisher
	logger    *slog.Logger
}

// NewBusNotifier creates a bus-backed notifier.
func NewBusNotifier(publisher eventbus.Publisher, logger *slog.Logger) *BusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusNotifier{publisher: publisher, logger: logger}
}

// NotifyHost publishes a host notification request.
func (n *BusNotifier) NotifyHost(ctx context.Context, hostID uuid.UUID, event string, payload map[string]any) error {
	body := map[string]any{"host_id": hostID, "event": event}
	for k, v := range payload {
		body[k] = v
	}
	return n.publish(ctx, "notify.host."+event, body)
}

// NotifyOperators publishes an operator notification request.
func (n *BusNotifier) NotifyOperators(ctx context.Context, event string, payload map[string]any) error {
	body := map[string]any{"event": event}
	for k, v := range payload {
		body[k] = v
	}
	return n.publish(ctx, "notify.operators."+event, body)
}

func (n *BusNotifier) publish(ctx context.Context, routingKey string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, routingKey, data)
}

// LogNotifier writes notifications to the log. Local mode and tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyHost(ctx context.Context, hostID uuid.UUID, event string, payload map[string]any) error {
	n.logger.Info("host notification", "host_id", hostID, "event", event, "payload", payload)
	return nil
}

func (n *LogNotifier) NotifyOperators(ctx context.Context, event string, payload map[string]any) error {
	n.logger.Info("operator notification", "event", event, "payload", payload)
	return nil
}
