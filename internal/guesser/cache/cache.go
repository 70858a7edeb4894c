// Package cache provides a Redis-backed guess cache with singleflight
// deduplication, so a burst of identical queries computes the embedding and
// similarity scan once. Redis failures trip a circuit breaker and degrade to
// direct computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/retrieval-systems/tfidf-guesser/internal/guesser"
	"github.com/retrieval-systems/tfidf-guesser/pkg/config"
	pkgredis "github.com/retrieval-systems/tfidf-guesser/pkg/redis"
	"github.com/retrieval-systems/tfidf-guesser/pkg/resilience"
)

const keyPrefix = "guess:"

// GuessCache caches guess results keyed by normalized query text and top-n.
type GuessCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a GuessCache on top of an established Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *GuessCache {
	return &GuessCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("guess-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "guess-cache"),
	}
}

// Get returns the cached guesses for the query, if present.
func (c *GuessCache) Get(ctx context.Context, query string, n int) ([]*guesser.Guess, bool) {
	key := c.buildKey(query, n)
	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			// A miss is a healthy response, not a breaker failure.
			data = ""
			return nil
		}
		return getErr
	})
	if err != nil {
		c.logger.Debug("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if data == "" {
		c.misses.Add(1)
		return nil, false
	}
	var guesses []*guesser.Guess
	if err := json.Unmarshal([]byte(data), &guesses); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return guesses, true
}

// Set stores the guesses under the query's key with the configured TTL.
func (c *GuessCache) Set(ctx context.Context, query string, n int, guesses []*guesser.Guess) {
	key := c.buildKey(query, n)
	data, err := json.Marshal(guesses)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil {
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn exactly once per
// key across concurrent callers. The second return reports a cache hit.
func (c *GuessCache) GetOrCompute(
	ctx context.Context,
	query string,
	n int,
	computeFn func() ([]*guesser.Guess, error),
) ([]*guesser.Guess, bool, error) {
	if guesses, ok := c.Get(ctx, query, n); ok {
		return guesses, true, nil
	}
	key := c.buildKey(query, n)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if guesses, ok := c.Get(ctx, query, n); ok {
			return guesses, nil
		}
		guesses, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, n, guesses)
		return guesses, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]*guesser.Guess), false, nil
}

// Invalidate removes every cached guess, e.g. after a model swap.
func (c *GuessCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating guess cache: %w", err)
	}
	c.logger.Info("guess cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters.
func (c *GuessCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the cache circuit breaker state for metrics.
func (c *GuessCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

func (c *GuessCache) buildKey(query string, n int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	raw := fmt.Sprintf("%s:n=%d", normalized, n)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
