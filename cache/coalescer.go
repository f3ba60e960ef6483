package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Coalescer is get-or-compute with concurrent misses collapsed into one
// producer call per key.
//
// Callers that miss on the same key while a producer is running wait for it
// and share its result or error. Errors are still never cached.
//
// The producer runs with the values of the caller that started the flight but
// not its cancellation, so one caller leaving does not fail the others. Each
// caller stops waiting when its own context is done; the flight still
// finishes and stores its value. Producers should bound their own run time.
type Coalescer[T any] struct {
	store *Store[T]
	group singleflight.Group
}

// NewCoalescer creates a Coalescer over store.
func NewCoalescer[T any](store *Store[T]) *Coalescer[T] {
	return &Coalescer[T]{store: store}
}

// Store returns the underlying store.
func (c *Coalescer[T]) Store() *Store[T] {
	return c.store
}

// Do returns the cached value for key or computes it once for all concurrent
// callers.
func (c *Coalescer[T]) Do(ctx context.Context, key Key, produce Producer[T], ttl time.Duration) (T, error) {
	var zero T
	if c == nil || c.store == nil {
		return zero, ErrNilStore
	}
	if produce == nil {
		return zero, ErrNilProducer
	}

	if cached, ok := c.store.Get(key); ok {
		return cached, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key), func() (any, error) {
		// A flight that finished between our Get and DoChan has already
		// stored the value; don't count this lookup twice.
		if cached, ok := c.store.peek(key); ok {
			return cached, nil
		}

		result, err := produce(flightCtx)
		if err != nil {
			return nil, err
		}
		c.store.Set(key, result, ttl)
		return result, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		result, _ := res.Val.(T)
		return result, nil
	}
}

// DoAttributes canonicalizes attrs and calls Do.
func (c *Coalescer[T]) DoAttributes(ctx context.Context, attrs Attributes, produce Producer[T], ttl time.Duration) (T, error) {
	key, err := Canonicalize(attrs)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Do(ctx, key, produce, ttl)
}
