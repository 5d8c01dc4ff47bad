package shard

import (
	"sync/atomic"

	"github.com/krisalay/routecache/types"
)

/*
Store holds the entries of one shard.

Reads dominate: every route request looks its key up, while writes only
happen once per TTL window per key. The default implementation is therefore
copy-on-write, giving readers a lock-free immutable snapshot.
*/
type Store interface {
	Get(key string) (*types.CacheEntry, bool)

	// Put and Delete must be serialized by the caller.
	Put(key string, ent *types.CacheEntry)
	Delete(key string)

	Size() int

	// Snapshot returns a read-only view. Callers must not modify it.
	Snapshot() map[string]*types.CacheEntry
}

type cowStore struct {
	data atomic.Pointer[map[string]*types.CacheEntry]
}

func NewCOWStore() Store {
	s := &cowStore{}
	m := make(map[string]*types.CacheEntry)
	s.data.Store(&m)
	return s
}

func (s *cowStore) Get(key string) (*types.CacheEntry, bool) {
	ent, ok := (*s.data.Load())[key]
	return ent, ok
}

// Put copies the current map, sets key, and swaps the copy in.
func (s *cowStore) Put(key string, ent *types.CacheEntry) {
	old := *s.data.Load()
	n := make(map[string]*types.CacheEntry, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = ent
	s.data.Store(&n)
}

func (s *cowStore) Delete(key string) {
	old := *s.data.Load()
	if _, ok := old[key]; !ok {
		return
	}
	n := make(map[string]*types.CacheEntry, len(old))
	for k, v := range old {
		if k != key {
			n[k] = v
		}
	}
	s.data.Store(&n)
}

func (s *cowStore) Size() int {
	return len(*s.data.Load())
}

func (s *cowStore) Snapshot() map[string]*types.CacheEntry {
	return *s.data.Load()
}
