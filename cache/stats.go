package cache

import "fmt"

// Stats is a snapshot of a store's counters.
type Stats struct {
	Name string `json:"name"`

	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`

	// HitRate is hits/(hits+misses) as a one-decimal percentage, e.g. "66.7%".
	HitRate string `json:"hitRate"`

	Size    int `json:"size"`
	MaxSize int `json:"maxSize"`

	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
}

// Lookups returns hits plus misses.
func (s Stats) Lookups() uint64 {
	return s.Hits + s.Misses
}

// Ratio returns the raw hit ratio in [0, 1]. Zero traffic yields 0.
func (s Stats) Ratio() float64 {
	total := s.Lookups()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Saturated reports whether the store is at capacity, so the next new key
// will evict.
func (s Stats) Saturated() bool {
	return s.MaxSize > 0 && s.Size >= s.MaxSize
}

// FormatHitRate renders hits/(hits+misses)*100 rounded half-up to one decimal,
// followed by a percent sign. Zero traffic renders as "0.0%".
func FormatHitRate(hits, misses uint64) string {
	total := hits + misses
	if total == 0 {
		return "0.0%"
	}
	// Tenths of a percent, rounded half-up in integer arithmetic.
	tenths := (hits*2000 + total) / (2 * total)
	return fmt.Sprintf("%d.%d%%", tenths/10, tenths%10)
}
