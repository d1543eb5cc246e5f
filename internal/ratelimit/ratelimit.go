// Package ratelimit enforces per-credential request quotas with a Redis
// fixed-window counter.
//
// The window is the current UTC minute; the key is
// "ratelimit:<credential>:<unix minute>". INCR and EXPIRE run in one
// pipeline round trip, so every API instance sharing the Redis sees the same
// counter. When Redis is unreachable the limiter degrades open: a broken
// cache must throttle nothing, not everything.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowTTL keeps counter keys around a little past their minute so a clock
// skewed client still decrements against the right window.
const windowTTL = 2 * time.Minute

// Decision is the outcome of one quota check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit and Remaining feed the X-RateLimit-* response headers.
	Limit     int
	Remaining int

	// RetryAfter is how long until the current window rolls over. Only
	// meaningful when Allowed is false.
	RetryAfter time.Duration
}

// Limiter counts requests per credential per minute.
type Limiter struct {
	client redis.UniversalClient
	log    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Limiter on the given Redis client.
func New(client redis.UniversalClient, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{client: client, log: log, now: time.Now}
}

// Allow records one request for credentialID against quota and reports
// whether it fits in the current window. quota <= 0 means unlimited.
func (l *Limiter) Allow(ctx context.Context, credentialID string, quota int) Decision {
	if quota <= 0 {
		return Decision{Allowed: true, Limit: 0, Remaining: 0}
	}

	now := l.now().UTC()
	minute := now.Unix() / 60
	key := fmt.Sprintf("ratelimit:%s:%d", credentialID, minute)

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, windowTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		// Degrade open: Redis being down is an availability incident, not a
		// reason to reject every caller.
		l.log.Warn("rate limiter unavailable, allowing request",
			"credential_id", credentialID, "error", err)
		return Decision{Allowed: true, Limit: quota, Remaining: quota}
	}

	count := int(incr.Val())
	remaining := quota - count
	if remaining < 0 {
		remaining = 0
	}

	if count > quota {
		windowEnd := time.Unix((minute+1)*60, 0)
		return Decision{
			Allowed:    false,
			Limit:      quota,
			Remaining:  0,
			RetryAfter: windowEnd.Sub(now),
		}
	}
	return Decision{Allowed: true, Limit: quota, Remaining: remaining}
}
