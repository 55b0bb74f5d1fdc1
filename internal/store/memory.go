package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the in-process Store used when no Redis URL is configured
// (local development, tests). Expiry is lazy on read with a periodic sweep
// so long-idle keys do not accumulate.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
	done    chan struct{}
	closed  sync.Once
}

// NewMemoryStore creates an in-memory store and starts its sweep loop.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.sweep(time.Minute)
	return s
}

// NewMemoryStoreWithClock creates a store with an injected clock and no
// sweep loop. Expired keys are still invisible to Get.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
		done:    make(chan struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another writer may have
		// replaced the entry with a fresh one.
		if cur, ok := s.entries[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Incr atomically increments the counter at key and refreshes its TTL.
// An expired entry restarts the count at one.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	var count int64
	if entry, ok := s.entries[key]; ok && !now.After(entry.expiresAt) {
		if n, err := strconv.ParseInt(entry.value, 10, 64); err == nil {
			count = n
		}
	}
	count++
	s.entries[key] = memoryEntry{value: strconv.FormatInt(count, 10), expiresAt: now.Add(ttl)}
	return count, nil
}

// SetNX writes the value only if the key is absent or expired.
func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	if entry, ok := s.entries[key]; ok && !now.After(entry.expiresAt) {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

// TTL returns the remaining lifetime of key; zero or negative means the
// key is absent or already expired.
func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	return entry.expiresAt.Sub(s.now()), nil
}

// Close stops the sweep loop.
func (s *MemoryStore) Close() {
	s.closed.Do(func() { close(s.done) })
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
