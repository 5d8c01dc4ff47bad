package expiration

import (
	"time"

	"github.com/krisalay/routecache/types"
)

/*
ExpireAfterWrite is a fixed window: an entry is live from StoredAt until
StoredAt + TTL and reads never extend it. Upstream content goes stale on the
upstream's schedule, not ours, so a sliding window would serve arbitrarily
old responses to a popular route.
*/
type ExpireAfterWrite struct{}

// IsExpired is true once now reaches StoredAt + TTL.
func (e *ExpireAfterWrite) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return !ent.LiveAt(now)
}

// OnWrite records the store time. The TTL is resolved by the engine beforehand.
func (e *ExpireAfterWrite) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.StoredAt = now
}
