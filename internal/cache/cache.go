// Package cache stores the source digests recorded by the digest staleness
// strategy. Entries never expire: a digest stays valid until the next
// successful compile overwrites it. The default store lives in process
// memory; Redis lets several dev servers, or a dev server and a build run,
// share what they recorded.
package cache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when nothing was recorded for a key.
	ErrNotFound = errors.New("cache: key not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("cache: closed")
)

// Cache is a string-keyed byte store. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend for New.
type Options struct {
	Backend string // "memory" (default) or "redis"
	Redis   RedisCacheConfig
}

// New builds the store described by opts. A Redis store is pinged before
// it is returned so a bad address fails at startup.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		c := NewRedisCache(opts.Redis)
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opts.Redis.Addr, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", opts.Backend)
	}
}
