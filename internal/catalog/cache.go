package catalog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/util"
)

// DefaultCacheTTL bounds how stale a served catalog can be when a mutation
// happens on another instance.
const DefaultCacheTTL = 5 * time.Minute

// Repository persists the catalog document.
type Repository interface {
	Load(ctx context.Context) (*Data, bool, error)
	Save(ctx context.Context, data *Data) error
}

// Cache is the single read-through cache in front of the catalog
// repository. Ownership is explicit: the factory builds one Cache and
// every reader goes through it; mutations invalidate it wholesale.
type Cache struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	data     *Data
	loadedAt time.Time
}

// NewCache wraps a repository with a TTL-bounded cache.
func NewCache(repo Repository, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{repo: repo, ttl: ttl, now: time.Now}
}

// NewCacheWithClock is used by tests to simulate time.
func NewCacheWithClock(repo Repository, ttl time.Duration, now func() time.Time) *Cache {
	c := NewCache(repo, ttl)
	c.now = now
	return c
}

// GetOrLoad returns the cached document, loading from the repository when
// the cache is empty or past its TTL. A repository miss falls back to the
// seed document so a fresh deployment still serves a catalog.
func (c *Cache) GetOrLoad(ctx context.Context) (*Data, error) {
	c.mu.RLock()
	if c.data != nil && c.now().Sub(c.loadedAt) < c.ttl {
		data := c.data
		c.mu.RUnlock()
		return data, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.data, nil
	}

	data, found, err := c.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		util.Info("Catalog not yet persisted, serving seed data")
		data = SeedData()
	}

	c.data = data
	c.loadedAt = c.now()
	return data, nil
}

// InvalidateAll drops the cached document. Every mutation calls this, so
// the next read goes back to the repository.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.data = nil
	c.mu.Unlock()
	util.Debug("Catalog cache invalidated", zap.Duration("ttl", c.ttl))
}
