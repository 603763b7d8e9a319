package artifact

import (
	"context"
	"sync"
)

// Cell is a one-shot result slot. The first Settle wins; later calls are
// ignored.
type Cell[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// NewCell returns an unsettled Cell.
func NewCell[T any]() *Cell[T] {
	return &Cell[T]{done: make(chan struct{})}
}

// Settle stores v if the cell is still empty and reports whether it did.
func (c *Cell[T]) Settle(v T) bool {
	settled := false
	c.once.Do(func() {
		c.value = v
		settled = true
		close(c.done)
	})
	return settled
}

// Done is closed once the cell is settled.
func (c *Cell[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the cell is settled or ctx is done.
func (c *Cell[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
