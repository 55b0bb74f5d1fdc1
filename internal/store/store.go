package store

import (
	"context"
	"time"
)

// Key layout shared by the OTP manager and the rate limiter.
const (
	OTPKeyPrefix       = "otp:"
	PhoneCooldownPrefix = "cd:phone:"
	IPRateLimitPrefix  = "rl:ip:"
	CatalogDataKey     = "catalog:data"
)

// Store is a generic keyed store with advisory expiry. All operations are
// idempotent with respect to missing keys: Get on an absent key reports
// absence rather than an error, Delete on an absent key is a no-op. Lazy
// expiry is acceptable; once the TTL has elapsed the key must read as
// absent even if not physically purged yet.
type Store interface {
	// Get returns the value and whether the key was present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key with the given TTL, replacing any
	// previous value and expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
}

// Incrementer is an optional Store capability: atomically increment the
// counter at key and refresh its TTL, returning the new count. The Redis
// store does this in one transaction; the in-memory store under its lock.
// A read-modify-write through Get/Set can lose counts when two instances
// share the same backend.
type Incrementer interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Stamper is an optional Store capability: write a value only if the key
// is absent, and read a key's remaining lifetime. TTL returns a
// non-positive duration for absent or expired keys.
type Stamper interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// OTPKey returns the store key for a phone's OTP record.
func OTPKey(phone string) string { return OTPKeyPrefix + phone }

// PhoneCooldownKey returns the store key for a phone's resend cooldown stamp.
func PhoneCooldownKey(phone string) string { return PhoneCooldownPrefix + phone }

// IPRateLimitKey returns the store key for a source IP's request counter.
func IPRateLimitKey(ip string) string { return IPRateLimitPrefix + ip }
