package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bananalabs-oss/powkie/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "geocode:v1:"
	DefaultCacheTTL = 30 * 24 * time.Hour
)

// Cache remembers successful lookups in Redis. Redis failures never fail a
// lookup; they fall through to the wrapped geocoder.
type Cache struct {
	next    Geocoder
	rdb     *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewCache(next Geocoder, rdb *redis.Client, ttl time.Duration, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl, metrics: m}
}

func cacheKey(address string) string {
	return cacheKeyPrefix + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (c *Cache) Geocode(ctx context.Context, address string) (Point, error) {
	key := cacheKey(address)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Point
		if err := json.Unmarshal(raw, &p); err == nil && p.Valid() {
			c.metrics.GeocodeRequest("cache_hit")
			return p, nil
		}
		log.Printf("[Geocode] Ignoring corrupt cache entry %s", key)
	case !errors.Is(err, redis.Nil):
		log.Printf("[Geocode] Cache read failed for %s: %v", key, err)
	}

	p, err := c.next.Geocode(ctx, address)
	if err != nil {
		return Point{}, err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return p, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Printf("[Geocode] Cache write failed for %s: %v", key, err)
	}
	return p, nil
}

// NewRedisClient builds a client from a redis:// URL and checks it answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[Redis] Connected to %s (DB: %d)", opts.Addr, opts.DB)
	return rdb, nil
}
