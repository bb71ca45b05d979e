package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCtxTimeout = 10 * time.Second

// SetupTestRedis returns a client for the shared Redis container. The database is
// flushed and the client closed when the test ends.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	SkipIfShort(t)

	addr, err := sharedRedis.get(redisRequest(), "6379/tcp")
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, PoolSize: 10})
	if err := retryPing(func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		_ = client.Close()
		t.Fatalf("Failed to ping Redis: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), redisCtxTimeout)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})

	return client
}

// SetupTestRedisWithPrefix also returns a key prefix unique to the test.
func SetupTestRedisWithPrefix(t *testing.T) (*redis.Client, string) {
	t.Helper()

	client := SetupTestRedis(t)
	return client, fmt.Sprintf("test:%s:", t.Name())
}
