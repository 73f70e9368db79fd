package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/model"
)

const defaultCacheTTL = 5 * time.Minute

// Cached is a read-through Redis cache in front of another Resolver.
// Redis failures are logged and the request falls through to the source.
type Cached struct {
	source Resolver
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// CacheOption configures a Cached resolver.
type CacheOption func(*Cached)

// WithTTL sets how long entries live. Catalog edits become visible after at most ttl.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces cache keys.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cached) {
		c.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

// NewCached wraps source with a Redis cache. The caller owns client.
func NewCached(source Resolver, client redis.UniversalClient, opts ...CacheOption) *Cached {
	c := &Cached{
		source: source,
		client: client,
		ttl:    defaultCacheTTL,
		prefix: "prenos:catalog",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cached) resolutionKey(productID int64, variant model.VariantRef) string {
	return fmt.Sprintf("%s:product:%d:%s", c.prefix, productID, variant)
}

func (c *Cached) rateKey(manufacturer string) string {
	return fmt.Sprintf("%s:rate:%s", c.prefix, manufacturer)
}

// Resolve implements Resolver.
func (c *Cached) Resolve(ctx context.Context, productID int64, variant model.VariantRef) (model.Resolution, error) {
	key := c.resolutionKey(productID, variant)

	var res model.Resolution
	if c.get(ctx, key, &res) {
		return res, nil
	}

	res, err := c.source.Resolve(ctx, productID, variant)
	if err != nil {
		return res, err
	}
	c.set(ctx, key, res)
	return res, nil
}

// Rate implements Resolver.
func (c *Cached) Rate(ctx context.Context, manufacturer string) (decimal.Decimal, error) {
	key := c.rateKey(manufacturer)

	var rate decimal.Decimal
	if c.get(ctx, key, &rate) {
		return rate, nil
	}

	rate, err := c.source.Rate(ctx, manufacturer)
	if err != nil {
		return rate, err
	}
	c.set(ctx, key, rate)
	return rate, nil
}

// Invalidate drops the cached resolution of a product/variant.
func (c *Cached) Invalidate(ctx context.Context, productID int64, variant model.VariantRef) error {
	if err := c.client.Del(ctx, c.resolutionKey(productID, variant)).Err(); err != nil {
		return fmt.Errorf("invalidating catalog cache: %w", err)
	}
	return nil
}

// InvalidateRate drops the cached rate of a manufacturer.
func (c *Cached) InvalidateRate(ctx context.Context, manufacturer string) error {
	if err := c.client.Del(ctx, c.rateKey(manufacturer)).Err(); err != nil {
		return fmt.Errorf("invalidating catalog cache: %w", err)
	}
	return nil
}

func (c *Cached) get(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("dropping corrupt catalog cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return false
	}
	return true
}

func (c *Cached) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("encoding catalog cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var (
	_ Resolver = (*SQLResolver)(nil)
	_ Resolver = (*Cached)(nil)
)
