package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/utils"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "websearch:"

// KV is the subset of the redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached stores successful search answers in Redis, brotli packed, for ttl.
// Cache failures never fail a search.
type Cached struct {
	next Searcher
	kv   KV
	ttl  time.Duration
}

func NewCached(next Searcher, kv KV, ttl time.Duration) *Cached {
	return &Cached{next: next, kv: kv, ttl: ttl}
}

func cacheKey(query string, maxResults int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return cacheKeyPrefix + utils.HashKey(normalized, fmt.Sprint(maxResults))
}

func (c *Cached) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	key := cacheKey(query, maxResults)

	if results, ok := c.lookup(ctx, key); ok {
		logger.Debug("Web search cache hit", "key", key)
		return results, nil
	}

	results, err := c.next.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		c.store(ctx, key, results)
	}
	return results, nil
}

func (c *Cached) lookup(ctx context.Context, key string) ([]Result, bool) {
	cctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()

	raw, err := c.kv.Get(cctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Web search cache read failed", "error", err)
		}
		return nil, false
	}

	data, err := utils.Unpack(raw)
	if err != nil {
		logger.Warn("Web search cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *Cached) store(ctx context.Context, key string, results []Result) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	packed, err := utils.Pack(data)
	if err != nil {
		logger.Warn("Web search cache compression failed", "error", err)
		return
	}

	cctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()
	if err := c.kv.Set(cctx, key, packed, c.ttl).Err(); err != nil {
		logger.Warn("Web search cache write failed", "error", err)
	}
}
