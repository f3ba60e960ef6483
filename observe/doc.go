// Package observe provides observability primitives for cached model calls.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. CacheMetrics plugs into cache.Store as a
// cache.Recorder; Middleware wraps the producer that runs on a cache miss.
package observe
