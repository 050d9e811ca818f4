// Package cache provides an optional redis-backed cache for merged
// annotation results, used by serve mode to skip re-running the model
// backends on repeated texts. The core never persists results; the cache is
// an explicit opt-in at the transport layer with a bounded TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/c360studio/semtag/annotation"
)

const defaultTTL = 15 * time.Minute

// Cache stores serialized results keyed by text and backend set.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache over an existing redis client.
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client, ttl: defaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key for a text and the declared backend set. The
// backend tags are part of the key so a config change never serves stale
// results from a different backend lineup.
func Key(text string, tags []annotation.Tag) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	joined := make([]string, len(tags))
	for i, tag := range tags {
		joined[i] = string(tag)
	}
	h.Write([]byte(strings.Join(joined, ",")))
	return "semtag:result:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached result, if present. Redis failures are logged and
// reported as a miss — the cache never fails a request.
func (c *Cache) Get(ctx context.Context, key string) (annotation.Result, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return annotation.Result{}, false
	}
	if err != nil {
		c.logger.Debug("cache get failed", slog.String("error", err.Error()))
		return annotation.Result{}, false
	}

	var res annotation.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Debug("cache entry corrupt, ignoring", slog.String("key", key))
		return annotation.Result{}, false
	}
	return res, true
}

// Set stores a result. Failures are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, res annotation.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Debug("cache encode failed", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", slog.String("error", err.Error()))
	}
}
