package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/courserank/internal/ranking"
)

// DefaultCacheKey is the Redis key holding the cached settings.
const DefaultCacheKey = "courserank:settings:v1"

// DefaultCacheTTL bounds how stale a cached record can be when another
// instance writes settings.
const DefaultCacheTTL = 30 * time.Second

// CachedRepository is a read-through Redis cache in front of another
// Repository. Cache failures are logged and fall through to the backing store.
type CachedRepository struct {
	backing Repository
	client  *redis.Client
	key     string
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCachedRepository wraps backing with a Redis cache. ttl <= 0 uses DefaultCacheTTL.
func NewCachedRepository(backing Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{
		backing: backing,
		client:  client,
		key:     DefaultCacheKey,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get returns cached settings, loading and caching them from the backing
// store on a miss.
func (r *CachedRepository) Get(ctx context.Context) (*ranking.Settings, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	switch {
	case err == nil:
		var cached ranking.Settings
		jsonErr := json.Unmarshal(data, &cached)
		if jsonErr == nil {
			return &cached, nil
		}
		r.logger.Warn("discarding corrupt settings cache entry", "key", r.key, "error", jsonErr)
	case errors.Is(err, redis.Nil):
		// miss
	default:
		r.logger.Warn("settings cache read failed", "key", r.key, "error", err)
	}

	s, err := r.backing.Get(ctx)
	if err != nil {
		return nil, err
	}
	r.store(ctx, s)
	return s, nil
}

// Save writes through to the backing store and invalidates the cache entry.
func (r *CachedRepository) Save(ctx context.Context, s *ranking.Settings) error {
	if err := r.backing.Save(ctx, s); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		r.logger.Warn("settings cache invalidation failed", "key", r.key, "error", err)
	}
	return nil
}

func (r *CachedRepository) store(ctx context.Context, s *ranking.Settings) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("settings cache write failed", "key", r.key, "error", err)
	}
}
