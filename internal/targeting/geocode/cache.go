package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"screening/internal/targeting/metrics"
	"screening/internal/targeting/models"
)

const (
	cacheKeyPrefix = "geocode:postcode:"

	DefaultCacheTTL = 24 * time.Hour
)

// Resolver is the lookup the cache sits in front of.
type Resolver interface {
	Resolve(ctx context.Context, postcode string) (models.GridReference, error)
}

// CachedGeocoder serves repeat postcodes from Redis. The cache is best
// effort: Redis errors fall through to the wrapped resolver. Only successful
// lookups are cached.
type CachedGeocoder struct {
	next    Resolver
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type CacheOption func(*CachedGeocoder)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedGeocoder) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachedGeocoder) {
		c.metrics = m
	}
}

// NewCachedGeocoder wraps next. A nil client disables caching.
func NewCachedGeocoder(next Resolver, client *redis.Client, ttl time.Duration, opts ...CacheOption) (*CachedGeocoder, error) {
	if next == nil {
		return nil, errors.New("geocoder is required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &CachedGeocoder{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *CachedGeocoder) Resolve(ctx context.Context, postcode string) (models.GridReference, error) {
	if c.client == nil {
		return c.next.Resolve(ctx, postcode)
	}

	key := cacheKeyPrefix + postcode
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var grid models.GridReference
		if jsonErr := json.Unmarshal(raw, &grid); jsonErr == nil {
			c.metrics.IncrementCache("hit")
			return grid, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt geocode cache entry", "postcode", postcode)
		c.metrics.IncrementCache("error")
	case errors.Is(err, redis.Nil):
		c.metrics.IncrementCache("miss")
	default:
		c.logger.WarnContext(ctx, "geocode cache read failed", "postcode", postcode, "error", err)
		c.metrics.IncrementCache("error")
	}

	grid, err := c.next.Resolve(ctx, postcode)
	if err != nil {
		return models.GridReference{}, err
	}

	if payload, err := json.Marshal(grid); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "geocode cache write failed", "postcode", postcode, "error", err)
		}
	}
	return grid, nil
}
