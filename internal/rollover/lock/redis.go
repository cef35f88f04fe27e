package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"

	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/sentinel"
)

const (
	defaultTTL    = 5 * time.Minute
	defaultPrefix = "esgledger:rollover:"
)

// Redis is a cross-instance lock backed by bsm/redislock. The TTL must exceed
// the longest expected rollover; the lock is released explicitly on completion.
type Redis struct {
	client   *redislock.Client
	ttl      time.Duration
	prefix   string
	retries  int
	backoffs [2]time.Duration
	logger   *slog.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithRetry retries a busy lock up to n times with exponential backoff
// between minBackoff and maxBackoff.
func WithRetry(n int, minBackoff, maxBackoff time.Duration) RedisOption {
	return func(r *Redis) {
		r.retries = n
		r.backoffs = [2]time.Duration{minBackoff, maxBackoff}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client redislock.RedisClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: redislock.New(client),
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	strategy := redislock.NoRetry()
	if r.retries > 0 {
		strategy = redislock.LimitRetry(redislock.ExponentialBackoff(r.backoffs[0], r.backoffs[1]), r.retries)
	}

	l, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{RetryStrategy: strategy})
	switch {
	case err == nil:
	case errors.Is(err, redislock.ErrNotObtained):
		return nil, busyErr(key)
	case ctx.Err() != nil:
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for rollover lock")
	default:
		return nil, dErrors.Wrap(errors.Join(sentinel.ErrUnavailable, err), dErrors.CodeInternal, "rollover lock unavailable")
	}

	return func() {
		// The caller's context may already be cancelled; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("failed to release rollover lock", "key", key, "error", err)
		}
	}, nil
}
