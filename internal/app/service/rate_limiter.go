package service

import (
	"context"
	"time"

	"github.com/oguzk/shortkit/internal/infra/metrics"
	"go.uber.org/zap"
)

// EndpointClass groups endpoints that share a rate budget.
type EndpointClass string

const (
	ClassShorten   EndpointClass = "shorten"
	ClassRedirect  EndpointClass = "redirect"
	ClassAnalytics EndpointClass = "analytics"
	ClassAdmin     EndpointClass = "admin"
)

// CounterStore is the shared counter surface the rate limiter needs. It must
// be reachable by every service instance so limits hold under horizontal
// scaling; the redis adapter implements it with INCR + EXPIRE + PTTL.
type CounterStore interface {
	// IncrWindow increments the window counter for key, arming the window
	// expiry on the first hit, and returns the new count plus the time left
	// in the window.
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// ClassLimit is the budget for one endpoint class.
type ClassLimit struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

const defaultCounterOpTimeout = 200 * time.Millisecond

// RateLimiter admits or rejects requests per (client identity, endpoint class)
// using fixed windows in a shared counter store. When the store is unreachable
// it fails open: redirect availability outranks strict enforcement.
type RateLimiter struct {
	counters  CounterStore
	classes   map[EndpointClass]ClassLimit
	logger    *zap.Logger
	opTimeout time.Duration
	keyPrefix string
}

// NewRateLimiter creates a limiter with per-class budgets. Classes without an
// entry are admitted unconditionally.
func NewRateLimiter(counters CounterStore, classes map[EndpointClass]ClassLimit, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		counters:  counters,
		classes:   classes,
		logger:    logger,
		opTimeout: defaultCounterOpTimeout,
		keyPrefix: "ratelimit:",
	}
}

// Admit decides whether a request from client may proceed for the given class.
// On rejection RetryAfter is derived from the window's remaining time, never
// an arbitrary constant.
func (l *RateLimiter) Admit(ctx context.Context, client string, class EndpointClass) Decision {
	limit, ok := l.classes[class]
	if !ok || limit.Limit <= 0 {
		return Decision{Allowed: true}
	}

	key := l.keyPrefix + string(class) + ":" + client

	incrCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
	count, remaining, err := l.counters.IncrWindow(incrCtx, key, limit.Window)
	cancel()

	if err != nil {
		metrics.RateLimitFailOpen.Inc()
		l.logger.Warn("counter store unavailable, admitting request",
			zap.String("class", string(class)), zap.Error(err))
		return Decision{Allowed: true}
	}

	if count > int64(limit.Limit) {
		metrics.RateLimitRejected.WithLabelValues(string(class)).Inc()
		retryAfter := remaining
		if retryAfter <= 0 {
			retryAfter = limit.Window
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return Decision{Allowed: true, Remaining: limit.Limit - int(count)}
}
