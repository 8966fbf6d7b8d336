package schema

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const fullSchemaCacheKey = "schema"

// Cached memoizes the full schema text of a provider for a fixed TTL.
// Table listings and per-table descriptions always go to the source.
type Cached struct {
	Provider
	ttl   time.Duration
	cache *ttlcache.Cache[string, string]
}

// WithCache wraps provider when ttl is positive and returns it unchanged otherwise.
func WithCache(provider Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		return provider
	}
	return &Cached{
		Provider: provider,
		ttl:      ttl,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

func (c *Cached) Schema(ctx context.Context) (string, error) {
	if item := c.cache.Get(fullSchemaCacheKey); item != nil {
		return item.Value(), nil
	}
	text, err := c.Provider.Schema(ctx)
	if err != nil {
		return "", err
	}
	c.cache.Set(fullSchemaCacheKey, text, c.ttl)
	return text, nil
}

func (c *Cached) Invalidate() {
	c.cache.DeleteAll()
}
