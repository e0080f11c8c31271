// Package ratelimit provides Redis-based rate limiting for the HTTP
// transport layer (C9): a Redis outage fails open, since the registry's own
// mutex already bounds worst-case write concurrency — this layer exists to
// blunt abusive clients, not to protect tree invariants.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when a caller has exceeded its quota.
var ErrRateLimited = errors.New("ratelimit: request rate exceeded")

// Limiter throttles HTTP requests against the registry using Redis INCR
// counters with a fixed window: one counter per namespace and a separate
// counter per client IP.
type Limiter struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewLimiter constructs a Limiter. A nil redis client is accepted and makes
// every check pass (useful for --engine=memory local runs with no Redis
// configured).
func NewLimiter(redisClient *redis.Client, logger *zap.Logger) *Limiter {
	return &Limiter{redis: redisClient, logger: logger}
}

// WriteLimits bounds mutating registry calls (update/update_all/clear) more
// tightly than read calls, since a write holds the registry-wide mutex.
type WriteLimits struct {
	PerNamespaceLimit  int
	PerNamespaceWindow time.Duration
	PerIPLimit         int
	PerIPWindow        time.Duration
}

// DefaultWriteLimits returns conservative limits suitable for a single
// registry instance backing several tenants.
func DefaultWriteLimits() WriteLimits {
	return WriteLimits{
		PerNamespaceLimit:  200,
		PerNamespaceWindow: time.Minute,
		PerIPLimit:         50,
		PerIPWindow:        time.Minute,
	}
}

// CheckWrite enforces WriteLimits for a write against namespace from ip.
func (l *Limiter) CheckWrite(ctx context.Context, namespace, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}

	limits := DefaultWriteLimits()

	nsKey := fmt.Sprintf("ratelimit:write:ns:%s", namespace)
	if err := l.checkLimit(ctx, nsKey, limits.PerNamespaceLimit, limits.PerNamespaceWindow); err != nil {
		if l.logger != nil {
			l.logger.Warn("namespace write rate exceeded", zap.String("namespace", namespace))
		}
		return ErrRateLimited
	}

	if ip != "" {
		ipKey := fmt.Sprintf("ratelimit:write:ip:%s", ip)
		if err := l.checkLimit(ctx, ipKey, limits.PerIPLimit, limits.PerIPWindow); err != nil {
			return ErrRateLimited
		}
	}

	return nil
}

// checkLimit increments key and compares against limit, setting an
// expiry of window on the counter's first increment.
func (l *Limiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		// Fail-open on Redis errors to maintain availability.
		return nil
	}

	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}

	if int(count) > limit {
		return ErrRateLimited
	}
	return nil
}
