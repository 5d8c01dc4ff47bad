package writepolicy

import (
	"context"

	"github.com/krisalay/routecache/types"
)

/*
WriteThroughPolicy archives synchronously inside the producing flight, so
waiters for the key are released only after the archive write finishes.
Use it with fast local archives.
*/
type WriteThroughPolicy struct {
	archive types.Archive
	onError ErrorFunc
}

func NewWriteThroughPolicy(archive types.Archive, onError ErrorFunc) *WriteThroughPolicy {
	return &WriteThroughPolicy{archive: archive, onError: onError}
}

func (w *WriteThroughPolicy) OnWrite(ctx context.Context, ent *types.CacheEntry) {
	report(w.onError, ent.Key, w.archive.Put(ctx, ent))
}

// Close has nothing to flush.
func (w *WriteThroughPolicy) Close() {}
