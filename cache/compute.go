package cache

import (
	"context"
	"time"
)

// Producer computes a value on a cache miss, typically by calling the model.
type Producer[T any] func(ctx context.Context) (T, error)

// GetOrCompute returns the cached value for attrs, or runs produce and caches
// its result with ttl (ttl <= 0 uses the store default).
//
// On a hit produce is never called. Errors from produce are returned as-is
// and are NOT cached, so the next call runs produce again.
//
// Two concurrent calls for the same new key may both run produce; the later
// Set wins. Use a Coalescer when duplicate upstream work matters.
func GetOrCompute[T any](
	ctx context.Context,
	store *Store[T],
	attrs Attributes,
	produce Producer[T],
	ttl time.Duration,
) (T, error) {
	key, err := Canonicalize(attrs)
	if err != nil {
		var zero T
		return zero, err
	}
	return GetOrComputeKey(ctx, store, key, produce, ttl)
}

// GetOrComputeKey is GetOrCompute for an already canonical key.
func GetOrComputeKey[T any](
	ctx context.Context,
	store *Store[T],
	key Key,
	produce Producer[T],
	ttl time.Duration,
) (T, error) {
	var zero T
	if store == nil {
		return zero, ErrNilStore
	}
	if produce == nil {
		return zero, ErrNilProducer
	}

	if cached, ok := store.Get(key); ok {
		return cached, nil
	}

	result, err := produce(ctx)
	if err != nil {
		return zero, err
	}

	store.Set(key, result, ttl)
	return result, nil
}
