package types

import "sync/atomic"

/*
Metrics receives cache lifecycle events.
Each method is called synchronously on the request path, so implementations must be cheap.
*/
type Metrics interface {

	// Hit is called when a live entry is served without running a producer.
	Hit()

	// Miss is called when no live entry exists and the caller has to start or join a flight.
	Miss()

	// Load is called each time a producer is actually invoked.
	Load()

	// LoadError is called when a producer fails.
	LoadError()

	// Stale is called when an expired entry is served in place of a producer error.
	Stale()

	// Eviction is called when an entry is dropped because its shard is full.
	Eviction()

	// Purge is called when an entry is dropped after outliving its stale-retention window.
	Purge()
}

// NoopMetrics ignores every event. The engine falls back to it when no sink is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()       {}
func (NoopMetrics) Miss()      {}
func (NoopMetrics) Load()      {}
func (NoopMetrics) LoadError() {}
func (NoopMetrics) Stale()     {}
func (NoopMetrics) Eviction()  {}
func (NoopMetrics) Purge()     {}

// Counters is a Metrics implementation backed by atomic counters.
type Counters struct {
	hits, misses, loads, loadErrors, stale, evictions, purges atomic.Int64
}

func (c *Counters) Hit()       { c.hits.Add(1) }
func (c *Counters) Miss()      { c.misses.Add(1) }
func (c *Counters) Load()      { c.loads.Add(1) }
func (c *Counters) LoadError() { c.loadErrors.Add(1) }
func (c *Counters) Stale()     { c.stale.Add(1) }
func (c *Counters) Eviction()  { c.evictions.Add(1) }
func (c *Counters) Purge()     { c.purges.Add(1) }

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Loads      int64 `json:"loads"`
	LoadErrors int64 `json:"load_errors"`
	Stale      int64 `json:"stale"`
	Evictions  int64 `json:"evictions"`
	Purges     int64 `json:"purges"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Loads:      c.loads.Load(),
		LoadErrors: c.loadErrors.Load(),
		Stale:      c.stale.Load(),
		Evictions:  c.evictions.Load(),
		Purges:     c.purges.Load(),
	}
}
