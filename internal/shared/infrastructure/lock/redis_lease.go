// Package lock provides a Redis-backed lease used to keep periodic sweeps
// mutually exclusive across processes.
package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another holder owns the lease.
var ErrLeaseHeld = errors.New("lease already held")

// releaseScript deletes the lease only when the caller still owns it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RedisLease is a single-holder lease on a Redis key.
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLease creates a lease on the given key with the given TTL.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisLease {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLease{client: client, key: key, ttl: ttl, logger: logger}
}

// Acquire takes the lease. The returned function releases it; release is
// best-effort and only removes the key when this holder still owns it.
func (l *RedisLease) Acquire(ctx context.Context) (func(context.Context), error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	release := func(ctx context.Context) {
		if err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("failed to release lease", "key", l.key, "error", err)
		}
	}
	return release, nil
}

// LocalLease is an in-process lease for single-node and test runs.
type LocalLease struct {
	held chan struct{}
}

// NewLocalLease creates an in-process lease.
func NewLocalLease() *LocalLease {
	l := &LocalLease{held: make(chan struct{}, 1)}
	return l
}

// Acquire takes the lease without blocking.
func (l *LocalLease) Acquire(ctx context.Context) (func(context.Context), error) {
	select {
	case l.held <- struct{}{}:
		return func(context.Context) { <-l.held }, nil
	default:
		return nil, ErrLeaseHeld
	}
}
