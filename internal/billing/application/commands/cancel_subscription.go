package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	"github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

// CancelSubscriptionCommand cancels the host's current subscription,
// either immediately or at the end of the paid period.
type CancelSubscriptionCommand struct {
	HostID    uuid.UUID
	Reason    string
	Immediate bool
}

// CancelSubscriptionHandler handles subscription cancellation.
type CancelSubscriptionHandler struct {
	subscriptions domain.SubscriptionRepository
	uow           application.UnitOfWork
	outbox        outbox.Repository
	logger        *slog.Logger
	now           func() time.Time
}

// NewCancelSubscriptionHandler creates a new cancel-subscription handler.
func NewCancelSubscriptionHandler(
	subscriptions domain.SubscriptionRepository,
	uow application.UnitOfWork,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *CancelSubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CancelSubscriptionHandler{
		subscriptions: subscriptions,
		uow:           uow,
		outbox:        outboxRepo,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle cancels the host's current subscription.
func (h *CancelSubscriptionHandler) Handle(ctx context.Context, cmd CancelSubscriptionCommand) (*domain.Subscription, error) {
	now := h.now()

	sub, err := h.subscriptions.FindCurrentByHost(ctx, cmd.HostID, now)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, domain.ErrNoActiveSubscription
	}

	if err := sub.Cancel(cmd.Reason, cmd.Immediate, now); err != nil {
		return nil, err
	}

	err = application.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		if err := h.subscriptions.Update(ctx, sub); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		msgs, err := outbox.FromEvents(sub.DomainEvents())
		if err != nil {
			return err
		}
		return h.outbox.SaveBatch(ctx, msgs)
	})
	if err != nil {
		return nil, err
	}
	sub.ClearDomainEvents()

	h.logger.Info("subscription canceled",
		"host_id", cmd.HostID,
		"immediate", cmd.Immediate,
		"end_date", sub.EndDate())
	return sub, nil
}
