// Package cache provides the in-process response cache that sits in front of
// the generative model.
//
// It provides order-independent key canonicalization, a bounded TTL store with
// insertion-order (FIFO) eviction and hit/miss accounting, key builders for
// chat turns and full-conversation analyses, and a get-or-compute helper that
// never caches failures.
//
// Expiry is lazy: an expired entry is dropped when it is next looked up or when
// Cleanup runs. Nothing sweeps in the background; long-lived stores must be
// registered with a Janitor (or have Cleanup called on a schedule) to bound
// memory.
package cache
