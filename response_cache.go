package cache

import (
	"context"
	"fmt"
	"time"

	cacheapi "github.com/krisalay/routecache/api"
	"github.com/krisalay/routecache/engine"
	evict "github.com/krisalay/routecache/eviction"
	"github.com/krisalay/routecache/shard"
	"github.com/krisalay/routecache/types"
)

/*
ResponseCache memoizes upstream responses by key with single-flight filling.

It connects:
- shards (entry storage, eviction bookkeeping, in-flight registry)
- the engine (TTL, expiry, archive, metrics)

One instance is created at process start and handed to every route.
*/
type ResponseCache struct {
	shards   []*shard.Shard
	engine   *engine.CacheEngine
	selector shard.Selector
}

var _ cacheapi.Cache = (*ResponseCache)(nil)

// NewResponseCache builds a cache of shards partitions holding at most capacity entries in total
// (0 = unbounded). Fewer than one shard is treated as one, and a bounded cache never has more
// shards than capacity.
func NewResponseCache(
	shards int,
	capacity int,
	policy evict.PolicyType,
	engine *engine.CacheEngine,
) *ResponseCache {
	if shards < 1 {
		shards = 1
	}

	budget := 0
	if capacity > 0 {
		shards = min(shards, capacity)
		budget = capacity / shards
	}

	s := make([]*shard.Shard, shards)
	for i := range s {
		s[i] = shard.NewShard(evict.NewEvictionPolicy(policy), budget)
	}

	return &ResponseCache{
		shards:   s,
		engine:   engine,
		selector: shard.HashSelector{},
	}
}

// Engine exposes the policy layer, e.g. for reloading the route expire.
func (c *ResponseCache) Engine() *engine.CacheEngine {
	return c.engine
}

func (c *ResponseCache) TryGet(
	ctx context.Context,
	key string,
	producer types.Producer,
	ttl time.Duration,
	refreshOnError bool,
) (any, error) {
	switch {
	case key == "":
		return nil, ErrEmptyKey
	case producer == nil:
		return nil, ErrNilProducer
	case ttl < 0:
		return nil, ErrNegativeTTL
	}

	sh := c.selector.Select(key, c.shards)

	if ent, ok := c.live(sh, key); ok {
		c.engine.Metrics.Hit()
		sh.Touch(key)
		return ent.Value, nil
	}
	c.engine.Metrics.Miss()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// DoChan either registers a new flight for key or attaches to the running one.
	flight := sh.Flights.DoChan(key, func() (any, error) {
		return c.fill(ctx, sh, key, producer, ttl)
	})

	select {
	case res := <-flight:
		if res.Err == nil {
			return res.Val, nil
		}
		if refreshOnError {
			if ent, ok := sh.Store.Get(key); ok {
				c.engine.Metrics.Stale()
				return ent.Value, nil
			}
		}
		return nil, res.Err

	case <-ctx.Done():
		// Only this caller stops waiting; the flight keeps going for the others.
		return nil, ctx.Err()
	}
}

// fill runs inside the flight. The entry is published before the flight is released,
// so there is no window where a key has neither a live entry nor a flight.
func (c *ResponseCache) fill(
	ctx context.Context,
	sh *shard.Shard,
	key string,
	producer types.Producer,
	ttl time.Duration,
) (val any, err error) {
	// A flight that settled between the caller's lookup and DoChan may have refilled key.
	if ent, ok := c.live(sh, key); ok {
		return ent.Value, nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.engine.Metrics.LoadError()
			val, err = nil, fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()

	pctx := context.WithoutCancel(ctx)

	c.engine.Metrics.Load()
	val, err = producer(pctx)
	if err != nil {
		c.engine.Metrics.LoadError()
		return nil, err
	}

	ent := c.engine.NewEntry(key, val, ttl)
	for range sh.Publish(ent) {
		c.engine.Metrics.Eviction()
	}
	c.engine.OnWrite(pctx, ent)

	return val, nil
}

func (c *ResponseCache) live(sh *shard.Shard, key string) (*types.CacheEntry, bool) {
	ent, ok := sh.Store.Get(key)
	if !ok || c.engine.IsExpired(ent) {
		return nil, false
	}
	return ent, true
}

func (c *ResponseCache) Peek(key string) (any, bool) {
	ent, ok := c.live(c.selector.Select(key, c.shards), key)
	if !ok {
		return nil, false
	}
	return ent.Value, true
}

func (c *ResponseCache) Remove(key string) {
	c.selector.Select(key, c.shards).Delete(key)
}

func (c *ResponseCache) TTL(key string) time.Duration {
	ent, ok := c.selector.Select(key, c.shards).Store.Get(key)
	if !ok {
		return -2
	}
	d := ent.ExpiresAt().Sub(c.engine.Now())
	if d <= 0 {
		return -2
	}
	return d
}

// Len counts stored entries, expired ones included.
func (c *ResponseCache) Len() int {
	n := 0
	for _, sh := range c.shards {
		n += sh.Store.Size()
	}
	return n
}

// Purge drops entries that have been expired for longer than the engine's StaleRetention
// and returns how many were removed.
func (c *ResponseCache) Purge() int {
	now := c.engine.Now()
	purged := 0
	for _, sh := range c.shards {
		for key, ent := range sh.Store.Snapshot() {
			if c.engine.IsPurgeable(ent, now) && sh.DeleteIf(key, ent) {
				c.engine.Metrics.Purge()
				purged++
			}
		}
	}
	return purged
}

// RunJanitor calls Purge every interval until ctx is done.
func (c *ResponseCache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Purge()
		}
	}
}

func (c *ResponseCache) Close() {
	c.engine.Close()
}

// TryGetAs is TryGet for producers of a concrete type.
func TryGetAs[T any](
	ctx context.Context,
	c cacheapi.Cache,
	key string,
	producer func(ctx context.Context) (T, error),
	ttl time.Duration,
	refreshOnError bool,
) (T, error) {
	var zero T
	if producer == nil {
		return zero, ErrNilProducer
	}

	v, err := c.TryGet(ctx, key, func(ctx context.Context) (any, error) {
		return producer(ctx)
	}, ttl, refreshOnError)
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrTypeMismatch, key, v)
	}
	return t, nil
}
