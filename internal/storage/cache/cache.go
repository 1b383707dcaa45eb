// Package cache wraps a map source with a read-through cache, so repeated page
// views of the same map do not hit the remote store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/pkg/core"
)

// ErrMiss is returned by a Cache when a key is absent.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Upstream is the source being cached.
type Upstream interface {
	GetMap(ctx context.Context, id uint) (*core.Map, error)
	GetMapData(ctx context.Context, id uint) (core.MapData, error)
	GetLocation(ctx context.Context, id uint) (*core.Location, error)
}

// Source serves reads from the cache and falls back to the upstream source.
// Cache errors are logged and never fail a read.
type Source struct {
	next  Upstream
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewSource wraps next with c.
func NewSource(next Upstream, c Cache, ttl time.Duration, log zerolog.Logger) *Source {
	return &Source{next: next, cache: c, ttl: ttl, log: log}
}

// GetMap returns the cached map or fetches and caches it. Maps with an
// undecodable location are not cached so the decode error stays visible.
func (s *Source) GetMap(ctx context.Context, id uint) (*core.Map, error) {
	key := fmt.Sprintf("wim:map:%d", id)
	var m core.Map
	if s.load(ctx, key, &m) {
		return &m, nil
	}

	fetched, err := s.next.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, l := range fetched.Locations {
		if l.CoordinatesErr != nil {
			return fetched, nil
		}
	}
	s.store(ctx, key, fetched)
	return fetched, nil
}

// GetMapData returns cached editor metadata or fetches and caches it.
func (s *Source) GetMapData(ctx context.Context, id uint) (core.MapData, error) {
	key := fmt.Sprintf("wim:mapdata:%d", id)
	var d core.MapData
	if s.load(ctx, key, &d) {
		return d, nil
	}

	d, err := s.next.GetMapData(ctx, id)
	if err != nil {
		return core.MapData{}, err
	}
	s.store(ctx, key, d)
	return d, nil
}

// GetLocation returns a cached location or fetches and caches it.
func (s *Source) GetLocation(ctx context.Context, id uint) (*core.Location, error) {
	key := fmt.Sprintf("wim:location:%d", id)
	var l core.Location
	if s.load(ctx, key, &l) {
		return &l, nil
	}

	fetched, err := s.next.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if fetched.CoordinatesErr == nil {
		s.store(ctx, key, fetched)
	}
	return fetched, nil
}

func (s *Source) load(ctx context.Context, key string, out any) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false
	}
	return true
}

func (s *Source) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// Redis is a Cache backed by a redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis client from cfg. The connection is established lazily.
func NewRedis(cfg config.CacheConfig) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// Ping checks that the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	return b, err
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
