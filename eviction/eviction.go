// Package eviction picks which response to drop when a shard reaches its entry budget.
package eviction

import (
	"fmt"
	"strings"
)

/*
Policy tracks key order for one shard. It is not safe for concurrent use;
the shard serializes every call under its write mutex.
*/
type Policy interface {

	// OnGet marks a key as read. Recency-based policies reorder on it.
	OnGet(string)

	// OnPut registers a stored key. Re-putting a tracked key counts as a use.
	OnPut(string)

	// Remove forgets a key that left the store for any reason other than Evict.
	Remove(string)

	// Evict chooses a victim, forgets it, and returns it. Empty string means nothing is tracked.
	Evict() string

	// Len is the number of tracked keys.
	Len() int
}

// PolicyType names a supported strategy.
type PolicyType string

const (
	// LRU drops the response that has gone unread the longest.
	LRU PolicyType = "LRU"

	// FIFO drops the response that was first stored earliest, regardless of reads.
	FIFO PolicyType = "FIFO"
)

// ParsePolicyType accepts a case-insensitive policy name as found in config files.
func ParsePolicyType(s string) (PolicyType, error) {
	switch PolicyType(strings.ToUpper(strings.TrimSpace(s))) {
	case LRU, "":
		return LRU, nil
	case FIFO:
		return FIFO, nil
	default:
		return "", fmt.Errorf("eviction: unknown policy %q", s)
	}
}

// NewEvictionPolicy builds a fresh policy instance. Each shard owns its own.
func NewEvictionPolicy(t PolicyType) Policy {
	switch t {
	case LRU:
		return newLRU()
	case FIFO:
		return newFIFO()
	default:
		panic("unknown eviction policy")
	}
}
