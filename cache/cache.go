package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrInvalidConfig    = errors.New("cache: invalid config")
	ErrUnsupportedValue = errors.New("cache: unsupported attribute value")
	ErrNilStore         = errors.New("cache: store is nil")
	ErrNilProducer      = errors.New("cache: producer is nil")
	ErrInvalidInterval  = errors.New("cache: cleanup interval must be positive")
)

// Key is a canonical cache key produced by Canonicalize.
//
// Two attribute sets holding the same pairs always yield the same Key,
// whatever order they were built in.
type Key string

// String returns the key as a plain string.
func (k Key) String() string {
	return string(k)
}
