package writepolicy

import (
	"context"

	"github.com/krisalay/routecache/types"
)

/*
WritePolicy decides how a freshly produced entry reaches the archive.

The engine calls OnWrite after the entry has been published in memory, so
the archive can never make a value visible before the cache does.
*/
type WritePolicy interface {

	/*
		OnWrite is called once per successful producer run.
	*/
	OnWrite(ctx context.Context, ent *types.CacheEntry)

	/*
		Close is called when the cache is shutting down.
	*/
	Close()
}

// ErrorFunc receives archive failures. Write policies never return them to cache callers.
type ErrorFunc func(key string, err error)

func report(fn ErrorFunc, key string, err error) {
	if err != nil && fn != nil {
		fn(key, err)
	}
}
