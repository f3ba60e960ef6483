package cache

import (
	"fmt"
	"time"
)

// Config configures a Store.
type Config struct {
	// MaxSize is the maximum number of live entries. When a new key is set on
	// a full store, the oldest-inserted entry is evicted first.
	MaxSize int

	// DefaultTTL is used when Set is called without a TTL.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultConfig returns the default store configuration.
// MaxSize: 50, DefaultTTL: 5 minutes, no MaxTTL
func DefaultConfig() Config {
	return Config{
		MaxSize:    50,
		DefaultTTL: 5 * time.Minute,
	}
}

// Validate reports whether the configuration can back a store.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: default TTL must be positive, got %v", ErrInvalidConfig, c.DefaultTTL)
	}
	if c.MaxTTL < 0 {
		return fmt.Errorf("%w: max TTL must not be negative, got %v", ErrInvalidConfig, c.MaxTTL)
	}
	if c.MaxTTL > 0 && c.MaxTTL < c.DefaultTTL {
		return fmt.Errorf("%w: max TTL %v is below default TTL %v", ErrInvalidConfig, c.MaxTTL, c.DefaultTTL)
	}
	return nil
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (c Config) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}
	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	return ttl
}

// Option configures optional Store behavior.
type Option func(*options)

type options struct {
	name     string
	now      func() time.Time
	recorder Recorder
}

// WithName sets the logical domain name of the store, e.g. "chat".
// It labels stats, metrics and log lines.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithClock replaces time.Now as the store's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRecorder attaches a Recorder that is told about every hit, miss,
// eviction and expiry.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}
