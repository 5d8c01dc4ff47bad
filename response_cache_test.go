package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/engine"
	"github.com/krisalay/routecache/eviction"
	"github.com/krisalay/routecache/types"
)

//
// ================= TEST HELPERS =================
//

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(capacity int) (*cache.ResponseCache, *fakeClock, *types.Counters) {
	clock := newFakeClock()
	metrics := &types.Counters{}

	e := engine.NewCacheEngine(nil, nil, metrics, time.Minute)
	e.Clock = clock.Now

	c := cache.NewResponseCache(
		4,            // shards
		capacity,     // capacity
		eviction.LRU, // eviction policy
		e,
	)
	return c, clock, metrics
}

// counter returns a producer yielding 1, 2, 3, ... and the number of calls so far.
func counter() (types.Producer, *atomic.Int64) {
	var n atomic.Int64
	return func(ctx context.Context) (any, error) {
		return n.Add(1), nil
	}, &n
}

func failing(err error) types.Producer {
	return func(ctx context.Context) (any, error) {
		return nil, err
	}
}

//
// ================= MEMOIZATION & EXPIRY =================
//

func TestMemoization(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)
	produce, calls := counter()

	v1, err := c.TryGet(ctx, "https://example.com/a", produce, 0, false)
	if err != nil {
		t.Fatalf("first TryGet: %v", err)
	}
	v2, err := c.TryGet(ctx, "https://example.com/a", produce, 0, false)
	if err != nil {
		t.Fatalf("second TryGet: %v", err)
	}

	if v1 != v2 {
		t.Fatalf("expected memoized value, got %v then %v", v1, v2)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 producer call, got %d", calls.Load())
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock, _ := newTestCache(0)
	produce, calls := counter()

	ttl := 10 * time.Second
	v1, _ := c.TryGet(ctx, "k", produce, ttl, false)

	clock.Advance(ttl - time.Nanosecond)
	if v, _ := c.TryGet(ctx, "k", produce, ttl, false); v != v1 {
		t.Fatalf("entry refreshed before TTL: %v", v)
	}

	clock.Advance(2 * time.Nanosecond)
	v2, err := c.TryGet(ctx, "k", produce, ttl, false)
	if err != nil {
		t.Fatalf("TryGet after expiry: %v", err)
	}
	if v2 == v1 || calls.Load() != 2 {
		t.Fatalf("expected a second producer run after TTL, got value %v and %d calls", v2, calls.Load())
	}
}

func TestDefaultTTLFromEngine(t *testing.T) {
	ctx := context.Background()
	c, clock, _ := newTestCache(0)
	produce, calls := counter()

	c.Engine().SetDefaultTTL(time.Hour)
	c.TryGet(ctx, "k", produce, 0, false)

	if ttl := c.TTL("k"); ttl != time.Hour {
		t.Fatalf("expected default TTL of 1h, got %v", ttl)
	}

	clock.Advance(59 * time.Minute)
	c.TryGet(ctx, "k", produce, 0, false)
	if calls.Load() != 1 {
		t.Fatalf("expected entry to live for the configured default, got %d calls", calls.Load())
	}
}

//
// ================= SINGLE-FLIGHT =================
//

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	c, _, metrics := newTestCache(0)

	const n = 50
	var calls atomic.Int64
	release := make(chan struct{})
	produce := func(ctx context.Context) (any, error) {
		<-release
		return fmt.Sprintf("value-%d", calls.Add(1)), nil
	}

	var ready, done sync.WaitGroup
	results := make([]any, n)
	errs := make([]error, n)

	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			ready.Done()
			results[i], errs[i] = c.TryGet(ctx, "shared", produce, 0, false)
		}(i)
	}

	ready.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != "value-1" {
			t.Fatalf("caller %d got %v", i, results[i])
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 producer call, got %d", calls.Load())
	}
	if got := metrics.Snapshot().Loads; got != 1 {
		t.Fatalf("expected 1 load in metrics, got %d", got)
	}
}

func TestSingleFlightSharesError(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)

	boom := errors.New("upstream 503")
	var calls atomic.Int64
	release := make(chan struct{})
	produce := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return nil, boom
	}

	const n = 10
	var ready, done sync.WaitGroup
	errs := make(chan error, n)
	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer done.Done()
			ready.Done()
			_, err := c.TryGet(ctx, "k", produce, 0, false)
			errs <- err
		}()
	}

	ready.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, boom) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 producer call, got %d", calls.Load())
	}
}

func TestJoinersApplyTheirOwnFallback(t *testing.T) {
	ctx := context.Background()
	c, clock, _ := newTestCache(0)

	if _, err := c.TryGet(ctx, "k", func(ctx context.Context) (any, error) { return "old", nil }, time.Second, false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	clock.Advance(2 * time.Second)

	boom := errors.New("upstream 503")
	var calls atomic.Int64
	release := make(chan struct{})
	produce := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return nil, boom
	}

	const n = 10
	var ready, done sync.WaitGroup
	vals := make([]any, n)
	errs := make([]error, n)

	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			ready.Done()
			// Even callers accept the stale value, odd callers do not.
			vals[i], errs[i] = c.TryGet(ctx, "k", produce, 0, i%2 == 0)
		}(i)
	}

	ready.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 producer call, got %d", calls.Load())
	}
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			if errs[i] != nil || vals[i] != "old" {
				t.Fatalf("caller %d: expected stale value, got %v, %v", i, vals[i], errs[i])
			}
			continue
		}
		if !errors.Is(errs[i], boom) || vals[i] != nil {
			t.Fatalf("caller %d: expected upstream error, got %v, %v", i, vals[i], errs[i])
		}
	}
}

func TestIndependentKeys(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)

	const n = 16
	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	calls := make([]atomic.Int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			v, err := c.TryGet(ctx, key, func(ctx context.Context) (any, error) {
				calls[i].Add(1)
				started.Done()
				// Every producer must be running at once; a serialized cache would stall here.
				select {
				case <-allStarted:
				case <-time.After(5 * time.Second):
					return nil, errors.New("producers for distinct keys did not overlap")
				}
				return key, nil
			}, 0, false)
			if err != nil {
				t.Errorf("%s: %v", key, err)
				return
			}
			if v != key {
				t.Errorf("%s: got %v", key, v)
			}
		}(i)
	}
	wg.Wait()

	for i := range calls {
		if calls[i].Load() != 1 {
			t.Fatalf("key-%d: expected 1 producer call, got %d", i, calls[i].Load())
		}
	}
}

//
// ================= ERRORS & STALE FALLBACK =================
//

func TestErrorPropagationWithoutFallback(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)
	boom := errors.New("parse failure")

	v, err := c.TryGet(ctx, "k", failing(boom), 0, false)
	if !errors.Is(err, boom) || v != nil {
		t.Fatalf("expected producer error, got %v, %v", v, err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed producer stored %d entries", c.Len())
	}
	if _, ok := c.Peek("k"); ok {
		t.Fatal("Peek found a value after a failed fill")
	}
}

func TestErrorWithoutPriorEntryIgnoresFallback(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)
	boom := errors.New("timeout")

	if _, err := c.TryGet(ctx, "k", failing(boom), 0, true); !errors.Is(err, boom) {
		t.Fatalf("expected producer error with nothing to fall back on, got %v", err)
	}
}

func TestStaleFallback(t *testing.T) {
	ctx := context.Background()
	c, clock, metrics := newTestCache(0)
	boom := errors.New("upstream down")

	if _, err := c.TryGet(ctx, "k", func(ctx context.Context) (any, error) {
		return "old", nil
	}, time.Second, true); err != nil {
		t.Fatalf("initial fill: %v", err)
	}

	clock.Advance(2 * time.Second)

	v, err := c.TryGet(ctx, "k", failing(boom), time.Second, true)
	if err != nil || v != "old" {
		t.Fatalf("expected stale value, got %v, %v", v, err)
	}
	if metrics.Snapshot().Stale != 1 {
		t.Fatalf("expected 1 stale serve, got %d", metrics.Snapshot().Stale)
	}

	// The stale value is not re-stored: without fallback the same failure surfaces.
	if _, err := c.TryGet(ctx, "k", failing(boom), time.Second, false); !errors.Is(err, boom) {
		t.Fatalf("expected producer error without fallback, got %v", err)
	}
	if c.TTL("k") != -2 {
		t.Fatalf("expected expired entry, TTL=%v", c.TTL("k"))
	}
}

func TestProducerPanicBecomesError(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)

	_, err := c.TryGet(ctx, "k", func(ctx context.Context) (any, error) {
		panic("selector returned nothing")
	}, 0, false)
	if !errors.Is(err, cache.ErrProducerPanic) {
		t.Fatalf("expected ErrProducerPanic, got %v", err)
	}

	v, err := c.TryGet(ctx, "k", func(ctx context.Context) (any, error) {
		return "recovered", nil
	}, 0, false)
	if err != nil || v != "recovered" {
		t.Fatalf("cache unusable after panic: %v, %v", v, err)
	}
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)
	produce, _ := counter()

	if _, err := c.TryGet(ctx, "", produce, 0, false); !errors.Is(err, cache.ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	if _, err := c.TryGet(ctx, "k", nil, 0, false); !errors.Is(err, cache.ErrNilProducer) {
		t.Fatalf("expected ErrNilProducer, got %v", err)
	}
	if _, err := c.TryGet(ctx, "k", produce, -time.Second, false); !errors.Is(err, cache.ErrNegativeTTL) {
		t.Fatalf("expected ErrNegativeTTL, got %v", err)
	}
}

//
// ================= CANCELLATION =================
//

func TestWaiterTimeoutDoesNotCancelFlight(t *testing.T) {
	c, _, _ := newTestCache(0)

	release := make(chan struct{})
	started := make(chan struct{})
	var producerErr error
	produce := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		producerErr = ctx.Err()
		return "done", nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		_, err := c.TryGet(leaderCtx, "k", produce, 0, false)
		leader <- err
	}()
	<-started

	waiterCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.TryGet(waiterCtx, "k", produce, 0, false); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected waiter deadline, got %v", err)
	}

	cancelLeader()
	if err := <-leader; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected leader cancellation, got %v", err)
	}

	patient := make(chan any, 1)
	go func() {
		v, _ := c.TryGet(context.Background(), "k", produce, 0, false)
		patient <- v
	}()

	close(release)
	if v := <-patient; v != "done" {
		t.Fatalf("expected flight result, got %v", v)
	}
	if producerErr != nil {
		t.Fatalf("producer context was cancelled: %v", producerErr)
	}
	if v, ok := c.Peek("k"); !ok || v != "done" {
		t.Fatalf("flight result not stored: %v, %v", v, ok)
	}
}

func TestCancelledContextSkipsFill(t *testing.T) {
	c, _, _ := newTestCache(0)
	produce, calls := counter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.TryGet(ctx, "k", produce, 0, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("producer ran for a cancelled caller")
	}
}

//
// ================= CAPACITY, PURGE, REMOVE =================
//

func TestCapacityBound(t *testing.T) {
	ctx := context.Background()
	c, _, metrics := newTestCache(8)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		c.TryGet(ctx, key, func(ctx context.Context) (any, error) { return key, nil }, 0, false)
	}

	if c.Len() > 8 {
		t.Fatalf("cache grew past capacity: %d", c.Len())
	}
	if metrics.Snapshot().Evictions == 0 {
		t.Fatal("expected evictions")
	}
}

func TestCapacityBelowShardCount(t *testing.T) {
	ctx := context.Background()
	e := engine.NewCacheEngine(nil, nil, nil, time.Minute)
	c := cache.NewResponseCache(16, 3, eviction.LRU, e)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		c.TryGet(ctx, key, func(ctx context.Context) (any, error) { return key, nil }, 0, false)
		if c.Len() > 3 {
			t.Fatalf("cache grew past capacity after %d keys: %d", i+1, c.Len())
		}
	}
}

func TestPurgeAfterStaleRetention(t *testing.T) {
	ctx := context.Background()
	c, clock, _ := newTestCache(0)
	c.Engine().StaleRetention = time.Minute
	produce, _ := counter()

	c.TryGet(ctx, "a", produce, time.Second, false)
	c.TryGet(ctx, "b", produce, time.Hour, false)

	clock.Advance(30 * time.Second)
	if n := c.Purge(); n != 0 {
		t.Fatalf("purged %d entries inside the retention window", n)
	}

	clock.Advance(31 * time.Second)
	if n := c.Purge(); n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
	if _, ok := c.Peek("b"); !ok {
		t.Fatal("live entry was purged")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
}

func TestRemoveAndTTL(t *testing.T) {
	ctx := context.Background()
	c, clock, _ := newTestCache(0)
	produce, calls := counter()

	c.TryGet(ctx, "k", produce, 10*time.Second, false)
	clock.Advance(4 * time.Second)

	if ttl := c.TTL("k"); ttl != 6*time.Second {
		t.Fatalf("expected 6s left, got %v", ttl)
	}

	c.Remove("k")
	c.Remove("k")
	if ttl := c.TTL("k"); ttl != -2 {
		t.Fatalf("expected -2 after remove, got %v", ttl)
	}

	c.TryGet(ctx, "k", produce, 0, false)
	if calls.Load() != 2 {
		t.Fatalf("expected refill after remove, got %d calls", calls.Load())
	}
}

//
// ================= TYPED ACCESS =================
//

type story struct {
	Title string
}

func TestTryGetAs(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(0)

	s, err := cache.TryGetAs(ctx, c, "story/1", func(ctx context.Context) (*story, error) {
		return &story{Title: "hello"}, nil
	}, 0, false)
	if err != nil || s.Title != "hello" {
		t.Fatalf("unexpected result %+v, %v", s, err)
	}

	_, err = cache.TryGetAs(ctx, c, "story/1", func(ctx context.Context) (string, error) {
		return "never called", nil
	}, 0, false)
	if !errors.Is(err, cache.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}
