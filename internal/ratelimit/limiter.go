package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/store"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// Default policy applied by the verification service. Exceeding either
// limit yields a retryable rejection, never a hard ban.
const (
	DefaultIPLimit        = 30
	DefaultIPWindow       = time.Hour
	DefaultResendCooldown = 60 * time.Second
)

// CooldownResult reports whether an action is allowed and, if not, how long
// the caller must wait.
type CooldownResult struct {
	OK   bool
	Wait time.Duration
}

// Limiter enforces per-scope cooldowns and decaying counters on top of the
// key-value store.
type Limiter struct {
	store store.Store
	now   func() time.Time
}

// NewLimiter creates a rate limiter backed by the given store.
func NewLimiter(s store.Store) *Limiter {
	return &Limiter{store: s, now: time.Now}
}

// NewLimiterWithClock is used by tests to simulate time.
func NewLimiterWithClock(s store.Store, now func() time.Time) *Limiter {
	return &Limiter{store: s, now: now}
}

// EnforceCooldown checks the last-action timestamp for scopeKey. If less
// than window has elapsed it rejects with the remaining wait and leaves the
// timer untouched. If allowed, it records the current timestamp with
// TTL = window.
func (l *Limiter) EnforceCooldown(ctx context.Context, scopeKey string, window time.Duration) (CooldownResult, error) {
	now := l.now()
	stamp := strconv.FormatInt(now.UnixMilli(), 10)

	if st, ok := l.store.(store.Stamper); ok {
		set, err := st.SetNX(ctx, scopeKey, stamp, window)
		if err != nil {
			return CooldownResult{}, fmt.Errorf("cooldown stamp: %w", err)
		}
		if set {
			return CooldownResult{OK: true}, nil
		}
		wait, err := st.TTL(ctx, scopeKey)
		if err != nil {
			return CooldownResult{}, fmt.Errorf("cooldown ttl: %w", err)
		}
		if wait <= 0 {
			// Stamp expired between the two reads; claim the slot.
			if err := l.store.Set(ctx, scopeKey, stamp, window); err != nil {
				return CooldownResult{}, fmt.Errorf("cooldown write: %w", err)
			}
			return CooldownResult{OK: true}, nil
		}
		return CooldownResult{OK: false, Wait: wait}, nil
	}

	raw, ok, err := l.store.Get(ctx, scopeKey)
	if err != nil {
		return CooldownResult{}, fmt.Errorf("cooldown read: %w", err)
	}
	if ok {
		lastMs, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr == nil {
			elapsed := now.Sub(time.UnixMilli(lastMs))
			if elapsed < window {
				return CooldownResult{OK: false, Wait: window - elapsed}, nil
			}
		} else {
			util.Warn("Discarding malformed cooldown stamp",
				zap.String("key", scopeKey),
				zap.String("value", raw))
		}
	}

	if err := l.store.Set(ctx, scopeKey, stamp, window); err != nil {
		return CooldownResult{}, fmt.Errorf("cooldown write: %w", err)
	}
	return CooldownResult{OK: true}, nil
}

// IncrementWithTTL increments the counter for scopeKey and refreshes its
// TTL to window on every call, returning the new count.
//
// Because the TTL is refreshed on each increment, this is a decaying
// "count since last call" rather than a fixed rolling window: steady
// traffic keeps the counter alive indefinitely. This is the intended
// behavior of the limit, not an oversight.
func (l *Limiter) IncrementWithTTL(ctx context.Context, scopeKey string, window time.Duration) (int, error) {
	if inc, ok := l.store.(store.Incrementer); ok {
		count, err := inc.Incr(ctx, scopeKey, window)
		if err != nil {
			return 0, fmt.Errorf("counter incr: %w", err)
		}
		return int(count), nil
	}

	// Read-modify-write for stores without an atomic increment. Not safe
	// across instances; single-process stores only.
	raw, ok, err := l.store.Get(ctx, scopeKey)
	if err != nil {
		return 0, fmt.Errorf("counter read: %w", err)
	}

	count := 0
	if ok {
		if n, parseErr := strconv.Atoi(raw); parseErr == nil {
			count = n
		} else {
			util.Warn("Discarding malformed rate counter",
				zap.String("key", scopeKey),
				zap.String("value", raw))
		}
	}
	count++

	if err := l.store.Set(ctx, scopeKey, strconv.Itoa(count), window); err != nil {
		return 0, fmt.Errorf("counter write: %w", err)
	}
	return count, nil
}
