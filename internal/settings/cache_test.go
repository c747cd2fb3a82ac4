package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/courserank/internal/ranking"
)

// unreachableRedis returns a client whose every command fails quickly.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCachedRepository_FailsOpen(t *testing.T) {
	backing := NewInMemoryRepository()
	repo := NewCachedRepository(backing, unreachableRedis(t), time.Minute, nil)
	ctx := context.Background()

	s := ranking.DefaultSettings()
	s.PromotionCap = 2
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("save should succeed when the cache is down, got %v", err)
	}

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("get should fall through to the backing store, got %v", err)
	}
	if got.PromotionCap != 2 {
		t.Errorf("expected cap 2 from backing store, got %d", got.PromotionCap)
	}
}

func TestCachedRepository_PropagatesBackingErrors(t *testing.T) {
	repo := NewCachedRepository(NewInMemoryRepository(), unreachableRedis(t), 0, nil)

	if _, err := repo.Get(context.Background()); !errors.Is(err, ErrSettingsNotFound) {
		t.Errorf("expected ErrSettingsNotFound, got %v", err)
	}

	bad := ranking.DefaultSettings()
	bad.FreshnessMaxAgeDays = -1
	if err := repo.Save(context.Background(), bad); !errors.Is(err, ranking.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewCachedRepository_Defaults(t *testing.T) {
	repo := NewCachedRepository(NewInMemoryRepository(), unreachableRedis(t), 0, nil)
	if repo.ttl != DefaultCacheTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultCacheTTL, repo.ttl)
	}
	if repo.key != DefaultCacheKey {
		t.Errorf("expected key %q, got %q", DefaultCacheKey, repo.key)
	}
}
