package ingest

import (
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"
)

// ConditionalState is what the Fetcher persists between ticks to drive
// conditional GETs: the last ETag/Last-Modified pair for the XHR endpoint.
type ConditionalState struct {
	ETag         string `cbor:"etag"`
	LastModified string `cbor:"lastModified"`
}

// ConditionalCache stores ConditionalState across ticks, and across process
// restarts when backed by Redis. A bare in-memory map is enough for a single
// instance; Redis lets a redeployed instance resume conditional requests
// instead of forcing a full refetch on its first tick.
type ConditionalCache interface {
	Get(key string) (ConditionalState, bool)
	Set(key string, state ConditionalState)
}

// memoryCache is the fallback used when REDIS_URL is unset.
type memoryCache struct {
	mu    sync.RWMutex
	state map[string]ConditionalState
}

// NewMemoryCache returns a process-local ConditionalCache.
func NewMemoryCache() ConditionalCache {
	return &memoryCache{state: make(map[string]ConditionalState)}
}

func (c *memoryCache) Get(key string) (ConditionalState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.state[key]
	return s, ok
}

func (c *memoryCache) Set(key string, state ConditionalState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = state
}

// redisCache CBOR-encodes ConditionalState into a Redis string keyed by the
// upstream URL, using a redigo connection pool the way a short-lived worker
// would - one Get/Set pair per tick, never held open between ticks.
type redisCache struct {
	pool     *redis.Pool
	ttl      int
	fallback ConditionalCache
}

// NewRedisCache dials lazily via a redigo pool. Any Redis error during a
// Get/Set falls back to the in-memory cache for that call rather than
// failing the tick - the conditional cache is a latency optimization, not a
// correctness dependency.
func NewRedisCache(redisURL string) ConditionalCache {
	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(redisURL)
		},
	}
	return &redisCache{pool: pool, ttl: 3600, fallback: NewMemoryCache()}
}

func (c *redisCache) Get(key string) (ConditionalState, bool) {
	conn := c.pool.Get()
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", cacheKey(key)))
	if err != nil {
		if err != redis.ErrNil {
			zap.S().Warnw("redis conditional cache get failed, using in-memory fallback", "error", err)
		}
		return c.fallback.Get(key)
	}
	var state ConditionalState
	if err := cbor.Unmarshal(raw, &state); err != nil {
		zap.S().Warnw("failed to decode cached conditional state", "error", err)
		return c.fallback.Get(key)
	}
	return state, true
}

func (c *redisCache) Set(key string, state ConditionalState) {
	c.fallback.Set(key, state)

	encoded, err := cbor.Marshal(state)
	if err != nil {
		zap.S().Warnw("failed to encode conditional state for redis", "error", err)
		return
	}
	conn := c.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("SETEX", cacheKey(key), c.ttl, encoded); err != nil {
		zap.S().Warnw("redis conditional cache set failed", "error", err)
	}
}

func cacheKey(key string) string {
	return "courtwatch:conditional:" + key
}
