package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/eventbus"
)

// RelayConfig configures the outbox relay.
type RelayConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultRelayConfig returns sensible defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

// Relay polls the outbox and publishes pending messages to the broker.
type Relay struct {
	repo      Repository
	publisher eventbus.Publisher
	config    RelayConfig
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRelay creates a new outbox relay.
func NewRelay(repo Repository, publisher eventbus.Publisher, config RelayConfig, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the polling loop in a goroutine.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info("outbox relay started",
		"poll_interval", r.config.PollInterval,
		"batch_size", r.config.BatchSize,
	)
}

// Stop gracefully stops the relay.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("outbox relay stopped")
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.logger.Error("failed to drain outbox", "error", err)
			}
		}
	}
}

// DrainOnce processes a single batch synchronously. Used by tests and the
// sweep CLI command.
func (r *Relay) DrainOnce(ctx context.Context) error {
	return r.drain(ctx)
}

func (r *Relay) drain(ctx context.Context) error {
	messages, err := r.repo.GetUnpublished(ctx, r.config.BatchSize)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if err := r.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
			r.logger.Warn("failed to publish message",
				"id", msg.ID,
				"routing_key", msg.RoutingKey,
				"event_id", msg.EventID,
				"error", err,
			)
			if msg.RetryCount+1 >= r.config.MaxRetries {
				if markErr := r.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
					r.logger.Error("failed to dead-letter message", "id", msg.ID, "error", markErr)
				}
			} else {
				nextRetryAt := time.Now().Add(r.backoff(msg.RetryCount + 1))
				if markErr := r.repo.MarkFailed(ctx, msg.ID, err.Error(), nextRetryAt); markErr != nil {
					r.logger.Error("failed to mark message failed", "id", msg.ID, "error", markErr)
				}
			}
			continue
		}

		if err := r.repo.MarkPublished(ctx, msg.ID); err != nil {
			r.logger.Error("failed to mark message published", "id", msg.ID, "error", err)
		}
	}

	return nil
}

func (r *Relay) backoff(retry int) time.Duration {
	backoff := r.config.RetryBackoffBase
	for i := 1; i < retry; i++ {
		backoff *= 2
		if backoff >= r.config.RetryBackoffMax {
			return r.config.RetryBackoffMax
		}
	}
	if backoff > r.config.RetryBackoffMax {
		return r.config.RetryBackoffMax
	}
	return backoff
}
