package writepolicy

import (
	"context"
	"sync"

	"github.com/krisalay/routecache/types"
)

type writeReq struct {
	ctx context.Context
	ent *types.CacheEntry
}

/*
WriteBackPolicy queues archive writes for a single background worker.

When the queue is full the write is dropped and reported as ErrQueueFull:
the archive is a mirror, and stalling route requests on it would be worse
than missing a copy.
*/
type WriteBackPolicy struct {
	archive types.Archive
	onError ErrorFunc

	ch chan writeReq
	wg sync.WaitGroup

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewWriteBackPolicy(archive types.Archive, buffer int, onError ErrorFunc) *WriteBackPolicy {
	w := &WriteBackPolicy{
		archive: archive,
		onError: onError,
		ch:      make(chan writeReq, buffer),
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

func (w *WriteBackPolicy) OnWrite(ctx context.Context, ent *types.CacheEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		report(w.onError, ent.Key, ErrClosed)
		return
	}

	select {
	case w.ch <- writeReq{context.WithoutCancel(ctx), ent}:
	default:
		report(w.onError, ent.Key, ErrQueueFull)
	}
}

func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		report(w.onError, req.ent.Key, w.archive.Put(req.ctx, req.ent))
	}
}

// Close stops accepting writes and waits until the queue is drained.
func (w *WriteBackPolicy) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
		w.wg.Wait()
	})
}
