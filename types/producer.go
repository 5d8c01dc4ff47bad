package types

import "context"

/*
Producer computes the value for a cache key on a miss.

Typically this is an upstream fetch followed by parsing:
 1. Cache finds no live entry for the key
 2. Exactly one caller runs the Producer
 3. On success the cache stores the value and hands it to every waiter
 4. On failure nothing is stored and the error goes back to the waiters

The context passed in is detached from the caller's cancellation, because
other callers may be waiting on the same computation. Producers that need a
deadline must set their own.
*/
type Producer func(ctx context.Context) (any, error)

/*
Archive is a write-only mirror of produced values (SQLite, files, ...).

The cache never reads from it. It is used by write policies to keep a
copy of what was fetched from upstream for inspection.
*/
type Archive interface {
	Put(ctx context.Context, ent *CacheEntry) error
}
