package cache

import (
	"context"
	"time"

	"github.com/krisalay/routecache/types"
)

/*
Cache is the contract route handlers program against.
Sharding, eviction, expiry and the in-flight registry stay behind it.
*/
type Cache interface {

	/*
		TryGet returns the value for key, running producer only when needed.

		BEHAVIOR:
		---------
		1. A live entry is returned immediately.
		2. If a producer for key is already running, the caller waits for it
		   and gets the same value or error.
		3. Otherwise the caller runs producer. Success is stored with ttl
		   (0 = the configured route expire). Failure stores nothing.

		On failure with refreshOnError set, the previous entry for key is
		returned even if expired, when one is still held.

		ctx bounds only this caller's wait. The producer itself runs with a
		context that is not cancelled when ctx is.
	*/
	TryGet(ctx context.Context, key string, producer types.Producer, ttl time.Duration, refreshOnError bool) (any, error)

	/*
		Peek returns the live value for key without running anything.
	*/
	Peek(key string) (any, bool)

	/*
		Remove drops key. Removing a missing key is a no-op.
		A flight already running for key still stores its result.
	*/
	Remove(key string)

	/*
		TTL returns the remaining lifetime of key.

		RETURN VALUES:
		--------------
		> 0 : time left before expiry
		-2  : key is absent or already expired
	*/
	TTL(key string) time.Duration

	/*
		Close flushes the archive write policy. The cache stays readable.
	*/
	Close()
}
