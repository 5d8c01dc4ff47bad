package types

import "time"

// CacheEntry is one memoized producer result.
// Entries are published once and never mutated afterwards; a refill replaces the pointer.
type CacheEntry struct {
	Key      string
	Value    any
	StoredAt time.Time
	TTL      time.Duration
}

// ExpiresAt is the first instant at which the entry is no longer live.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// LiveAt reports whether the entry may still be served at now.
func (e *CacheEntry) LiveAt(now time.Time) bool {
	return now.Before(e.ExpiresAt())
}
