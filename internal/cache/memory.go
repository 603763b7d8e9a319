package cache

import (
	"bytes"
	"context"
	"sync"
)

// MemoryCache keeps entries in a map for the life of the process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte // nil once closed
}

// NewMemoryCache returns an empty in-process store.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil {
		return nil, ErrClosed
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		return ErrClosed
	}
	c.entries[key] = bytes.Clone(value)
	return nil
}

func (c *MemoryCache) Ping(context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil {
		return ErrClosed
	}
	return nil
}

// Close drops every entry. Closing twice is a no-op.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	return nil
}
