package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Options tunes the distributed mutex.
type Options struct {
	// Expiry bounds how long a crashed holder can keep the lock.
	Expiry time.Duration

	// Tries is the number of acquisition attempts.
	Tries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// DefaultOptions suits recalculations that finish well within a second.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      20,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Redis is a Locker backed by a redsync mutex, so several server instances
// can share one database safely.
type Redis struct {
	rs   *redsync.Redsync
	opts Options
}

// NewRedis builds a Redis locker over client.
func NewRedis(client redis.UniversalClient, opts Options) *Redis {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultOptions().Expiry
	}
	if opts.Tries < 1 {
		opts.Tries = DefaultOptions().Tries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = DefaultOptions().RetryDelay
	}
	return &Redis{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}
}

// WithLock acquires key, runs fn and releases key even if fn panics.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	mutex := r.rs.NewMutex(key,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return fmt.Errorf("acquire %s: %w", key, ErrBusy)
		}
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	slog.Debug("Lock acquired", "key", key)

	defer func() {
		// The caller's context may already be cancelled; release regardless.
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			slog.Warn("Failed to release lock", "key", key, "unlock_ok", ok, "error", err)
		}
	}()

	return fn(ctx)
}
