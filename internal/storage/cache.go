package storage

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// WithCache fronts next with an expiring LRU of loaded text. Only present
// files are cached. Writes go through to next before the cache is updated.
func WithCache(next Adapter, size int, ttl time.Duration) Adapter {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &cachedStore{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

type cachedStore struct {
	next  Adapter
	cache *expirable.LRU[string, string]
}

func (c *cachedStore) Type() string {
	return c.next.Type()
}

func (c *cachedStore) Save(ctx context.Context, key string, text string) error {
	c.cache.Remove(key)
	if err := c.next.Save(ctx, key, text); err != nil {
		return err
	}
	c.cache.Add(key, text)
	return nil
}

func (c *cachedStore) Load(ctx context.Context, key string) (string, bool, error) {
	if text, ok := c.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("sqlnb cache hit", zap.String("key", key))
		return text, true, nil
	}
	text, ok, err := c.next.Load(ctx, key)
	if err != nil || !ok {
		return text, ok, err
	}
	c.cache.Add(key, text)
	return text, true, nil
}

func (c *cachedStore) Delete(ctx context.Context, key string) error {
	c.cache.Remove(key)
	return c.next.Delete(ctx, key)
}

func (c *cachedStore) List(ctx context.Context) ([]string, error) {
	return c.next.List(ctx)
}
