package cache

import (
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultName labels stores created without WithName.
const DefaultName = "default"

// Store is a bounded, TTL-aware cache of values of type T.
//
// Entries are kept in insertion order. A Set that re-uses a key moves it to
// the newest position; a Set of a new key on a full store evicts the single
// oldest-inserted entry. Access recency is never tracked.
//
// Contract:
// - Concurrency: safe for concurrent use. No method blocks on I/O.
// - Invariant: Len() <= MaxSize after every Set.
// - Invariant: Get never returns an entry whose expiry is at or before now.
type Store[T any] struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[Key, *storeEntry[T]]

	config   Config
	name     string
	now      func() time.Time
	recorder Recorder

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

type storeEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewStore creates a store with the given configuration. It fails fast with
// ErrInvalidConfig when the configuration cannot hold any entry.
func NewStore[T any](cfg Config, opts ...Option) (*Store[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		name:     DefaultName,
		now:      time.Now,
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[T]{
		entries:  orderedmap.New[Key, *storeEntry[T]](),
		config:   cfg,
		name:     o.name,
		now:      o.now,
		recorder: o.recorder,
	}, nil
}

// Name returns the logical domain name of the store.
func (s *Store[T]) Name() string {
	return s.name
}

// Config returns the store configuration.
func (s *Store[T]) Config() Config {
	return s.config
}

// Set stores value under key. A ttl <= 0 uses the default TTL; a positive
// MaxTTL clamps longer overrides.
func (s *Store[T]) Set(key Key, value T, ttl time.Duration) {
	ttl = s.config.EffectiveTTL(ttl)

	s.mu.Lock()
	expiresAt := s.now().Add(ttl)

	// Upsert drops the old slot so the key becomes the newest entry.
	evicted := false
	if _, existed := s.entries.Delete(key); !existed && s.entries.Len() >= s.config.MaxSize {
		if oldest := s.entries.Oldest(); oldest != nil {
			s.entries.Delete(oldest.Key)
			s.evictions++
			evicted = true
		}
	}
	s.entries.Set(key, &storeEntry[T]{value: value, expiresAt: expiresAt})
	s.mu.Unlock()

	if evicted {
		s.recorder.RecordEviction(s.name)
	}
}

// Get returns the live value for key. Returns (zero, false) on miss or expiry;
// an expired entry is removed on the way out.
func (s *Store[T]) Get(key Key) (T, bool) {
	s.mu.Lock()
	entry, ok := s.entries.Get(key)
	expired := ok && entry.expired(s.now())
	if expired {
		s.entries.Delete(key)
		s.expirations++
	}
	hit := ok && !expired
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()

	if expired {
		s.recorder.RecordExpiration(s.name, 1)
	}
	if !hit {
		s.recorder.RecordMiss(s.name)
		var zero T
		return zero, false
	}
	s.recorder.RecordHit(s.name)
	return entry.value, true
}

// Has reports whether key holds a live entry. It never changes the hit and
// miss counters, but it does drop an expired entry.
func (s *Store[T]) Has(key Key) bool {
	_, ok := s.peek(key)
	return ok
}

// peek is Get without hit/miss accounting.
func (s *Store[T]) peek(key Key) (T, bool) {
	s.mu.Lock()
	entry, ok := s.entries.Get(key)
	expired := ok && entry.expired(s.now())
	if expired {
		s.entries.Delete(key)
		s.expirations++
	}
	s.mu.Unlock()

	if expired {
		s.recorder.RecordExpiration(s.name, 1)
	}
	if !ok || expired {
		var zero T
		return zero, false
	}
	return entry.value, true
}

// Invalidate removes key. Idempotent - no-op on miss.
func (s *Store[T]) Invalidate(key Key) {
	s.mu.Lock()
	s.entries.Delete(key)
	s.mu.Unlock()
}

// Clear removes every entry. Hit, miss, eviction and expiry counters are
// lifetime metrics and survive a Clear.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.entries = orderedmap.New[Key, *storeEntry[T]]()
	s.mu.Unlock()
}

// Cleanup removes every expired entry and returns how many were removed.
func (s *Store[T]) Cleanup() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for pair := s.entries.Oldest(); pair != nil; {
		next := pair.Next()
		if pair.Value.expired(now) {
			s.entries.Delete(pair.Key)
			removed++
		}
		pair = next
	}
	s.expirations += uint64(removed)
	s.mu.Unlock()

	if removed > 0 {
		s.recorder.RecordExpiration(s.name, removed)
	}
	return removed
}

// Len returns the number of stored entries, including expired entries that
// have not been looked up or swept yet.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Stats returns a snapshot of the store's counters.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Name:        s.name,
		Hits:        s.hits,
		Misses:      s.misses,
		HitRate:     FormatHitRate(s.hits, s.misses),
		Size:        s.entries.Len(),
		MaxSize:     s.config.MaxSize,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
}

// expired reports whether entry is at or past its expiry at now.
func (e *storeEntry[T]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Ensure Store implements Sweeper
var _ Sweeper = (*Store[string])(nil)
