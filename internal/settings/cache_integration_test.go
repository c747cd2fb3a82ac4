//go:build integration

package settings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/onnwee/courserank/internal/ranking"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("could not start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

// countingRepo counts reads that reach the backing store.
type countingRepo struct {
	*InMemoryRepository
	gets int
}

func (c *countingRepo) Get(ctx context.Context) (*ranking.Settings, error) {
	c.gets++
	return c.InMemoryRepository.Get(ctx)
}

func TestCachedRepository_Integration_ReadThroughAndInvalidate(t *testing.T) {
	client := startRedis(t)
	backing := &countingRepo{InMemoryRepository: NewInMemoryRepository()}
	repo := NewCachedRepository(backing, client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, ranking.DefaultSettings()))

	first, err := repo.Get(ctx)
	require.NoError(t, err)
	second, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, backing.gets, "second read should be served from cache")

	updated := ranking.DefaultSettings()
	updated.PromotionCap = 0
	require.NoError(t, repo.Save(ctx, updated))

	after, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, after.PromotionCap)
	assert.Equal(t, 2, backing.gets, "save should invalidate the cached entry")

	ttl, err := client.TTL(ctx, DefaultCacheKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
