package cache

import (
	"sync"
	"time"
)

// fakeClock is a manually advanced time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingRecorder tallies recorder calls.
type countingRecorder struct {
	mu          sync.Mutex
	hits        int
	misses      int
	evictions   int
	expirations int
}

func (r *countingRecorder) RecordHit(string) {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordMiss(string) {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordEviction(string) {
	r.mu.Lock()
	r.evictions++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordExpiration(_ string, n int) {
	r.mu.Lock()
	r.expirations += n
	r.mu.Unlock()
}
