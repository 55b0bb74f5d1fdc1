// Package bucketing assigns deterministic buckets for audit rows so the
// analytics tables can be partitioned and sampled without exposing raw
// phone numbers.
package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

const (
	DefaultPhoneBuckets = 256
	DefaultEventBuckets = 64
)

type Manager struct {
	phoneBuckets int
	eventBuckets int
	hasherPool   sync.Pool
}

// Assignment carries every bucket attached to one audit row.
type Assignment struct {
	PhoneBucket int    `json:"phone_bucket"`
	EventBucket int    `json:"event_bucket"`
	TimeBucket  int64  `json:"time_bucket"`
	DateBucket  string `json:"date_bucket"`
}

func NewManager() *Manager {
	m := &Manager{
		phoneBuckets: DefaultPhoneBuckets,
		eventBuckets: DefaultEventBuckets,
	}
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return m
}

// PhoneBucket returns a stable bucket in [0, DefaultPhoneBuckets) for a
// phone number.
func (m *Manager) PhoneBucket(phone string) int {
	return m.bucket(phone, m.phoneBuckets)
}

// EventBucket returns a stable bucket for an event identifier.
func (m *Manager) EventBucket(identifier string) int {
	return m.bucket(identifier, m.eventBuckets)
}

// TimeBucket truncates t to the given window in seconds.
func (m *Manager) TimeBucket(t time.Time, windowSeconds int) int64 {
	return t.Unix() / int64(windowSeconds) * int64(windowSeconds)
}

// DateBucket returns the UTC calendar date of t.
func (m *Manager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Assign computes all buckets for one event at time t.
func (m *Manager) Assign(phone, eventType string, t time.Time) *Assignment {
	return &Assignment{
		PhoneBucket: m.PhoneBucket(phone),
		EventBucket: m.EventBucket(eventType),
		TimeBucket:  m.TimeBucket(t, 300),
		DateBucket:  m.DateBucket(t),
	}
}

func (m *Manager) bucket(key string, numBuckets int) int {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return int(hasher.Sum64() % uint64(numBuckets))
}
