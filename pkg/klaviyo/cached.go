package klaviyo

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/0xmhha/klaviyo-report/pkg/cache"
	"github.com/0xmhha/klaviyo-report/pkg/logger"
)

// CacheConfig contains response cache configuration.
type CacheConfig struct {
	// TTL is how long cached responses stay valid. Zero never expires.
	TTL time.Duration

	// Logger receives cache failures; they never fail a request.
	Logger logger.Logger

	// OnLookup, if set, is called for every lookup with its outcome.
	OnLookup func(hit bool)
}

// cachedAPI serves metric aggregates and the metric catalog from a store.
// Flows, messages, campaigns and events always go to the API.
type cachedAPI struct {
	API

	store  cache.Store
	config CacheConfig
}

// WithCache wraps api so that aggregate and catalog responses are read
// from and written to store.
func WithCache(api API, store cache.Store, cfg CacheConfig) API {
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}
	return &cachedAPI{API: api, store: store, config: cfg}
}

// FetchMetricAggregate implements API.FetchMetricAggregate.
func (c *cachedAPI) FetchMetricAggregate(ctx context.Context, req AggregateRequest) (*AggregateResponse, error) {
	key, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache key: %w", err)
	}

	var resp AggregateResponse
	if c.lookup("aggregate/"+string(key), &resp) {
		return &resp, nil
	}

	fresh, err := c.API.FetchMetricAggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	c.save("aggregate/"+string(key), fresh)
	return fresh, nil
}

// FetchMetricCatalog implements API.FetchMetricCatalog.
func (c *cachedAPI) FetchMetricCatalog(ctx context.Context) ([]Metric, error) {
	const key = "catalog/metrics"

	var metrics []Metric
	if c.lookup(key, &metrics) {
		return metrics, nil
	}

	fresh, err := c.API.FetchMetricCatalog(ctx)
	if err != nil {
		return nil, err
	}
	c.save(key, fresh)
	return fresh, nil
}

func (c *cachedAPI) lookup(key string, out any) bool {
	data, ok, err := c.store.Get(key)
	if err != nil {
		c.config.Logger.Warn("cache lookup failed", "key", key, "error", err)
		ok = false
	}
	if ok {
		if err := sonic.Unmarshal(data, out); err != nil {
			c.config.Logger.Warn("cache entry undecodable", "key", key, "error", err)
			ok = false
			if err := c.store.Delete(key); err != nil {
				c.config.Logger.Warn("cache delete failed", "key", key, "error", err)
			}
		}
	}
	if c.config.OnLookup != nil {
		c.config.OnLookup(ok)
	}
	return ok
}

func (c *cachedAPI) save(key string, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.config.Logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Put(key, data, c.config.TTL); err != nil {
		c.config.Logger.Warn("cache store failed", "key", key, "error", err)
	}
}
