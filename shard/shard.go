/*
Package shard splits the response cache into independent partitions.

Each shard owns a slice of the key space and has its own store, eviction
bookkeeping, write mutex and flight group, so work on keys in different
shards never contends. Within one shard the mutex is only held for map and
bookkeeping updates, never across a producer call.
*/
package shard

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/krisalay/routecache/eviction"
	"github.com/krisalay/routecache/types"
)

type Shard struct {
	Store Store

	// Flights is the pending-computation registry for keys owned by this shard.
	Flights singleflight.Group

	// eviction is guarded by mu, like every Store mutation.
	eviction eviction.Policy
	mu       sync.Mutex

	// budget is the maximum number of entries, 0 for unbounded.
	budget int
}

func NewShard(ev eviction.Policy, budget int) *Shard {
	return &Shard{
		Store:    NewCOWStore(),
		eviction: ev,
		budget:   budget,
	}
}

// Touch records a read for the eviction policy.
func (s *Shard) Touch(key string) {
	s.mu.Lock()
	s.eviction.OnGet(key)
	s.mu.Unlock()
}

// Publish stores ent, replacing any previous entry for its key.
// When a new key would exceed the budget, victims are evicted first and their keys returned.
func (s *Shard) Publish(ent *types.CacheEntry) (evicted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.Store.Get(ent.Key); !exists && s.budget > 0 {
		for s.Store.Size() >= s.budget {
			victim := s.eviction.Evict()
			if victim == "" {
				break
			}
			s.Store.Delete(victim)
			evicted = append(evicted, victim)
		}
	}

	s.Store.Put(ent.Key, ent)
	s.eviction.OnPut(ent.Key)
	return evicted
}

// Delete removes key. It reports whether anything was stored.
func (s *Shard) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Store.Get(key); !ok {
		return false
	}
	s.Store.Delete(key)
	s.eviction.Remove(key)
	return true
}

// DeleteIf removes key only while it still maps to ent, so a concurrent refill is never dropped.
func (s *Shard) DeleteIf(key string, ent *types.CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.Store.Get(key)
	if !ok || cur != ent {
		return false
	}
	s.Store.Delete(key)
	s.eviction.Remove(key)
	return true
}
