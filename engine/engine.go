package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/krisalay/routecache/expiration"
	"github.com/krisalay/routecache/types"
	"github.com/krisalay/routecache/writepolicy"
)

// DefaultRouteExpire is used when no route-expire duration is configured.
const DefaultRouteExpire = 5 * time.Minute

/*
CacheEngine is the policy layer of the response cache.

It decides:
- which TTL applies when a caller does not pass one
- when an entry is expired
- how long expired entries are kept around for stale fallback
- whether produced values are mirrored to an archive
- where metrics go

It does NOT store entries, shard keys, or run producers.
*/
type CacheEngine struct {

	// Expiration decides freshness. Nil means ExpireAfterWrite.
	Expiration expiration.Strategy

	// WritePolicy mirrors produced values to an archive. Nil keeps values in memory only.
	WritePolicy writepolicy.WritePolicy

	// Metrics always holds a usable sink.
	Metrics types.Metrics

	// Clock is the time source. Tests replace it to step over TTL boundaries.
	Clock func() time.Time

	// StaleRetention is how long an expired entry stays available for stale fallback
	// before Purge drops it. Zero keeps expired entries until replaced or evicted.
	StaleRetention time.Duration

	// defaultTTL is the process-wide route expire, reloadable at runtime.
	defaultTTL atomic.Int64
}

func NewCacheEngine(
	exp expiration.Strategy,
	writePolicy writepolicy.WritePolicy,
	metrics types.Metrics,
	defaultTTL time.Duration,
) *CacheEngine {
	if exp == nil {
		exp = &expiration.ExpireAfterWrite{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}

	e := &CacheEngine{
		Expiration:  exp,
		WritePolicy: writePolicy,
		Metrics:     metrics,
		Clock:       time.Now,
	}
	e.SetDefaultTTL(defaultTTL)
	return e
}

// SetDefaultTTL replaces the route expire. Non-positive values restore DefaultRouteExpire.
// Entries already stored keep the TTL they were written with.
func (e *CacheEngine) SetDefaultTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultRouteExpire
	}
	e.defaultTTL.Store(int64(ttl))
}

func (e *CacheEngine) DefaultTTL() time.Duration {
	return time.Duration(e.defaultTTL.Load())
}

// ResolveTTL maps a caller-supplied TTL to the effective one; 0 means the route expire.
func (e *CacheEngine) ResolveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return e.DefaultTTL()
}

func (e *CacheEngine) Now() time.Time {
	return e.Clock()
}

func (e *CacheEngine) IsExpired(ent *types.CacheEntry) bool {
	return e.Expiration.IsExpired(ent, e.Now())
}

// IsPurgeable reports whether ent has been expired for longer than StaleRetention.
func (e *CacheEngine) IsPurgeable(ent *types.CacheEntry, now time.Time) bool {
	if e.StaleRetention <= 0 {
		return false
	}
	return !now.Before(ent.ExpiresAt().Add(e.StaleRetention))
}

// NewEntry builds an entry ready to be published.
func (e *CacheEngine) NewEntry(key string, value any, ttl time.Duration) *types.CacheEntry {
	ent := &types.CacheEntry{Key: key, Value: value, TTL: e.ResolveTTL(ttl)}
	e.Expiration.OnWrite(ent, e.Now())
	return ent
}

// OnWrite forwards a published entry to the write policy, if any.
func (e *CacheEngine) OnWrite(ctx context.Context, ent *types.CacheEntry) {
	if e.WritePolicy != nil {
		e.WritePolicy.OnWrite(ctx, ent)
	}
}

func (e *CacheEngine) Close() {
	if e.WritePolicy != nil {
		e.WritePolicy.Close()
	}
}
