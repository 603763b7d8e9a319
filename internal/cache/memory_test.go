package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "digest:functions/hello.js"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before Set, got %v", err)
	}
	if err := c.Set(ctx, "digest:functions/hello.js", []byte("abc")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, "digest:functions/hello.js", []byte("def")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	v, err := c.Get(ctx, "digest:functions/hello.js")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(v) != "def" {
		t.Fatalf("got %q, want %q", v, "def")
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	in := []byte("abc")
	c.Set(ctx, "k", in)
	in[0] = 'X'

	out, _ := c.Get(ctx, "k")
	out[1] = 'Y'

	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was aliased: %q", again)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"))

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after Close: %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Set after Close: %v", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Ping after Close: %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(ctx, "k", []byte("v"))
				c.Get(ctx, "k")
			}
		}()
	}
	wg.Wait()
}
