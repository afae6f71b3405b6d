// Package pool provides a bounded gateway for model-bearing work. Every
// operation that can reach an AI provider is funneled through one gateway so
// the process never holds more in-flight provider work than configured,
// regardless of how many tenants are active.
package pool

import (
	"context"
	"fmt"

	"graphrag/pkg/common"

	"golang.org/x/sync/semaphore"
)

// Gateway bounds the number of concurrently executing tasks. Waiters are
// served in FIFO order; a cancelled context abandons the wait.
type Gateway struct {
	sem  *semaphore.Weighted
	size int64
}

// NewGateway returns a gateway admitting at most size tasks at once.
func NewGateway(size int) (*Gateway, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: gateway size must be positive", common.ErrInvalidInput)
	}
	return &Gateway{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}, nil
}

// Size returns the gateway's admission bound.
func (g *Gateway) Size() int {
	return int(g.size)
}

// Submit runs fn once a slot is free and releases the slot when fn returns.
// It blocks until admitted or ctx is done.
func Submit[T any](ctx context.Context, g *Gateway, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer g.sem.Release(1)
	return fn(ctx)
}
