package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestRedisClient skips the test when no local Redis is reachable.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisCache_SetGet(t *testing.T) {
	client := newTestRedisClient(t)
	c := NewRedisCacheFromClient(client, "test:")
	ctx := context.Background()

	if _, err := c.Get(ctx, "digest:fn.js"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before Set, got %v", err)
	}
	if err := c.Set(ctx, "digest:fn.js", []byte("abc")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err := c.Get(ctx, "digest:fn.js")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "abc" {
		t.Fatalf("expected 'abc', got '%s'", val)
	}

	// Stored under the prefix without expiry.
	ttl, err := client.TTL(ctx, "test:digest:fn.js").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), Options{Backend: "memcached"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNew_DefaultsToMemory(t *testing.T) {
	c, err := New(context.Background(), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*MemoryCache); !ok {
		t.Fatalf("expected *MemoryCache, got %T", c)
	}
}
