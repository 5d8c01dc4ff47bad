package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/engine"
	"github.com/krisalay/routecache/eviction"
	"github.com/krisalay/routecache/types"
)

// ================= BENCHMARK =================

// Simulates route traffic: many goroutines asking for a small set of hot upstream URLs,
// each upstream fetch taking a fixed latency. Reports how many upstream fetches the
// cache let through versus how many requests it served.
func main() {
	var (
		shards     = flag.Int("shards", 8, "cache shards")
		capacity   = flag.Int("capacity", 10000, "max cached responses")
		routes     = flag.Int("routes", 200, "distinct upstream URLs")
		goroutines = flag.Int("goroutines", 200, "concurrent clients")
		opsPerG    = flag.Int("ops", 5000, "requests per client")
		latency    = flag.Duration("latency", 20*time.Millisecond, "simulated upstream latency")
		ttl        = flag.Duration("ttl", 2*time.Second, "route expire")
	)
	flag.Parse()

	ctx := context.Background()

	fmt.Println("\n================ RESPONSE CACHE BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", *shards)
	fmt.Println("Capacity     :", *capacity)
	fmt.Println("Routes       :", *routes)
	fmt.Println("Goroutines   :", *goroutines)
	fmt.Println("Ops/Goroutine:", *opsPerG)
	fmt.Println("Latency      :", *latency)
	fmt.Println("Route expire :", *ttl)
	fmt.Println("---------------------------------")

	metrics := &types.Counters{}
	e := engine.NewCacheEngine(nil, nil, metrics, *ttl)
	c := cache.NewResponseCache(*shards, *capacity, eviction.LRU, e)
	defer c.Close()

	var upstream atomic.Int64
	fetch := func(url string) types.Producer {
		return func(ctx context.Context) (any, error) {
			upstream.Add(1)
			time.Sleep(*latency)
			return "<rss>" + url + "</rss>", nil
		}
	}

	fmt.Println("Running concurrency benchmark...")
	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(*goroutines)
	for i := 0; i < *goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < *opsPerG; j++ {
				url := fmt.Sprintf("https://upstream.example/route/%d", (id+j)%*routes)
				c.TryGet(ctx, url, fetch(url), 0, false)
			}
		}(i)
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := *goroutines * *opsPerG
	snap := metrics.Snapshot()

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Requests   : %d\n", totalOps)
	fmt.Printf("Upstream Fetches : %d\n", upstream.Load())
	fmt.Printf("Hits / Misses    : %d / %d\n", snap.Hits, snap.Misses)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f req/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Println("=========================================")
}
