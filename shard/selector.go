package shard

import "hash/fnv"

// Selector maps a key to the shard that owns it. The mapping must be stable for the life of the cache.
type Selector interface {
	Select(key string, shards []*Shard) *Shard
}

// HashSelector spreads keys with FNV-1a. Route keys are usually URLs sharing long prefixes,
// which FNV handles well enough for a handful of shards.
type HashSelector struct{}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	return shards[hash(key)%uint32(len(shards))]
}
