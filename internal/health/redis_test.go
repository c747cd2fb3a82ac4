package health

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisChecker_HealthCheck_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	checker := NewRedisChecker(client)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := checker.HealthCheck(ctx); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestRedisChecker_HealthCheck_ContextCancellation(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	defer client.Close()

	checker := NewRedisChecker(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := checker.HealthCheck(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
