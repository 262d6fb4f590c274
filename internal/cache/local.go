package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Local is an in-memory Cache used when Redis is not configured.
type Local struct {
	items *gocache.Cache
	log   *zap.Logger
}

// NewLocal returns an in-memory cache whose janitor evicts expired entries
// every cleanupInterval.
func NewLocal(cleanupInterval time.Duration, log *zap.Logger) *Local {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &Local{
		items: gocache.New(gocache.NoExpiration, cleanupInterval),
		log:   log,
	}
}

func (c *Local) Get(_ context.Context, key string) (string, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return "", ErrMiss
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrMiss
	}
	return s, nil
}

// Set stores value for ttl. A zero ttl keeps the entry until it is deleted.
func (c *Local) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.items.Set(key, value, ttl)
	return nil
}

func (c *Local) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Close drops every entry. The janitor goroutine stops once the cache is
// garbage collected.
func (c *Local) Close() error {
	if n := c.items.ItemCount(); n > 0 {
		c.log.Debug("dropping cached entries", zap.Int("count", n))
	}
	c.items.Flush()
	return nil
}
