// Package app wires the engine's dependencies for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	billingCommands "github.com/hostfolio/hostfolio/internal/billing/application/commands"
	billingServices "github.com/hostfolio/hostfolio/internal/billing/application/services"
	billingDomain "github.com/hostfolio/hostfolio/internal/billing/domain"
	billingPersistence "github.com/hostfolio/hostfolio/internal/billing/infrastructure/persistence"
	listingCommands "github.com/hostfolio/hostfolio/internal/listing/application/commands"
	listingServices "github.com/hostfolio/hostfolio/internal/listing/application/services"
	listingDomain "github.com/hostfolio/hostfolio/internal/listing/domain"
	listingPersistence "github.com/hostfolio/hostfolio/internal/listing/infrastructure/persistence"
	"github.com/hostfolio/hostfolio/internal/notify"
	sharedApplication "github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/eventbus"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/lock"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/migrations"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/hostfolio/hostfolio/internal/shared/infrastructure/persistence"
	"github.com/hostfolio/hostfolio/pkg/config"
)

// sweepLeaseTTL bounds how long a crashed sweeper can block the next one.
const sweepLeaseTTL = 2 * time.Minute

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage
	Pool     *pgxpool.Pool
	SQLiteDB *sql.DB

	// Messaging
	Redis     *redis.Client
	Publisher eventbus.Publisher
	Outbox    outbox.Repository
	Relay     *outbox.Relay
	Notifier  notify.Notifier

	// Shared
	UnitOfWork sharedApplication.UnitOfWork
	SweepLock  listingServices.SweepLock

	// Repositories
	Listings      listingDomain.Repository
	Subscriptions billingDomain.SubscriptionRepository
	Plans         billingDomain.PlanRepository
	Tiers         billingDomain.TierRepository
	Coupons       billingDomain.CouponRepository
	Invoices      billingDomain.InvoiceRepository
	Accounts      billingDomain.AccountRepository

	// Services
	Entitlements *billingServices.EntitlementResolver
	Pricing      *billingServices.PricingService
	Sweeper      *listingServices.TrialSweeper

	// Command handlers
	CreateListing   *listingCommands.CreateListingHandler
	ActivateListing *listingCommands.ActivateListingHandler
	RequestPayment  *billingCommands.RequestPaymentHandler
	ConfirmPayment  *billingCommands.ConfirmPaymentHandler
	CancelSub       *billingCommands.CancelSubscriptionHandler
	ReactivateSub   *billingCommands.ReactivateSubscriptionHandler
}

// NewContainer builds the dependency graph. With a DATABASE_URL it runs on
// Postgres; without one it falls back to local mode on SQLite with the
// built-in catalog.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg, Logger: newLogger(cfg)}

	if err := c.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := c.initMessaging(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.initServices()
	return c, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *Container) initStorage(ctx context.Context) error {
	if c.Config.LocalMode() {
		return c.initSQLite(ctx)
	}
	return c.initPostgres(ctx)
}

func (c *Container) initPostgres(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, c.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	c.Pool = pool

	c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)
	c.Outbox = outbox.NewPostgresRepository(pool)
	c.Listings = listingPersistence.NewPostgresRepository(pool)
	c.Subscriptions = billingPersistence.NewPostgresSubscriptionRepository(pool)
	c.Plans = billingPersistence.NewPostgresPlanRepository(pool)
	c.Tiers = billingPersistence.NewPostgresTierRepository(pool)
	c.Coupons = billingPersistence.NewPostgresCouponRepository(pool)
	c.Invoices = billingPersistence.NewPostgresInvoiceRepository(pool)
	c.Accounts = billingPersistence.NewPostgresAccountRepository(pool)
	return nil
}

func (c *Container) initSQLite(ctx context.Context) error {
	db, err := sql.Open("sqlite", c.Config.LocalDBPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return err
	}
	c.SQLiteDB = db
	c.Logger.Info("running in local mode", "path", c.Config.LocalDBPath)

	tiers, err := billingPersistence.NewStaticTierRepository(billingPersistence.DefaultTiers())
	if err != nil {
		db.Close()
		return err
	}

	c.UnitOfWork = sharedPersistence.NewSQLiteUnitOfWork(db)
	c.Outbox = outbox.NewSQLiteRepository(db)
	c.Listings = listingPersistence.NewSQLiteRepository(db)
	c.Subscriptions = billingPersistence.NewSQLiteSubscriptionRepository(db)
	c.Plans = billingPersistence.NewStaticPlanRepository(billingPersistence.DefaultPlans)
	c.Tiers = tiers
	c.Coupons = billingPersistence.NewMemoryCouponRepository()
	c.Invoices = billingPersistence.NewMemoryInvoiceRepository()
	c.Accounts = billingPersistence.NewMemoryAccountRepository()
	return nil
}

func (c *Container) initMessaging(ctx context.Context) error {
	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		c.Publisher = publisher
	} else {
		c.Publisher = eventbus.NewNoopPublisher(c.Logger)
	}

	if c.Config.RedisURL != "" {
		opts, err := redis.ParseURL(c.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		c.Redis = client
		c.SweepLock = lock.NewRedisLease(client, "hostfolio:sweep", sweepLeaseTTL, c.Logger)
	} else {
		c.SweepLock = lock.NewLocalLease()
	}

	relayConfig := outbox.DefaultRelayConfig()
	relayConfig.PollInterval = c.Config.OutboxPollInterval
	relayConfig.BatchSize = c.Config.OutboxBatchSize
	relayConfig.MaxRetries = c.Config.OutboxMaxRetries
	c.Relay = outbox.NewRelay(c.Outbox, c.Publisher, relayConfig, c.Logger)

	c.Notifier = notify.NewBreakerNotifier(notify.NewBusNotifier(c.Publisher, c.Logger), c.Logger)
	return nil
}

func (c *Container) initServices() {
	c.Entitlements = billingServices.NewEntitlementResolver(c.Subscriptions, c.Plans, c.Accounts, c.Listings)
	c.Pricing = billingServices.NewPricingService(c.Tiers, c.Coupons)
	c.Sweeper = listingServices.NewTrialSweeper(c.Listings, c.UnitOfWork, c.Outbox, c.Notifier, c.SweepLock, c.Logger)

	c.CreateListing = listingCommands.NewCreateListingHandler(c.Listings, c.Entitlements, c.UnitOfWork, c.Outbox, c.Logger)
	c.ActivateListing = listingCommands.NewActivateListingHandler(c.Listings, c.UnitOfWork, c.Outbox, c.Logger)
	c.RequestPayment = billingCommands.NewRequestPaymentHandler(
		c.Listings, c.Subscriptions, c.Invoices, c.Coupons, c.Pricing,
		c.UnitOfWork, c.Outbox, c.Notifier, c.Config.PaymentInstructions, c.Logger)
	c.ConfirmPayment = billingCommands.NewConfirmPaymentHandler(c.Invoices, c.Listings, c.UnitOfWork, c.Outbox, c.Notifier, c.Logger)
	c.CancelSub = billingCommands.NewCancelSubscriptionHandler(c.Subscriptions, c.UnitOfWork, c.Outbox, c.Logger)
	c.ReactivateSub = billingCommands.NewReactivateSubscriptionHandler(c.Subscriptions, c.UnitOfWork, c.Outbox, c.Logger)
}

// Close releases all held resources.
func (c *Container) Close() {
	if c.Relay != nil {
		c.Relay.Stop()
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn("failed to close publisher", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis", "error", err)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			c.Logger.Warn("failed to close sqlite", "error", err)
		}
	}
}
