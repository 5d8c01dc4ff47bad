// Package expiration decides when a stored response stops being servable.
package expiration

import (
	"time"

	"github.com/krisalay/routecache/types"
)

/*
Strategy is the rule the engine consults for freshness.
Keeping it behind an interface lets tests and callers swap the time policy
without touching the cache itself.
*/
type Strategy interface {

	// IsExpired reports whether ent must not be served at now.
	IsExpired(ent *types.CacheEntry, now time.Time) bool

	// OnWrite stamps a freshly produced entry before it is published.
	OnWrite(ent *types.CacheEntry, now time.Time)
}
