package eviction_test

import (
	"testing"

	"github.com/krisalay/routecache/eviction"
)

func TestLRUEvictsLeastRecentlyRead(t *testing.T) {
	p := eviction.NewEvictionPolicy(eviction.LRU)

	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("c")
	p.OnGet("a")

	if got := p.Evict(); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := p.Evict(); got != "c" {
		t.Fatalf("expected c, got %q", got)
	}
	if got := p.Evict(); got != "a" {
		t.Fatalf("expected a, got %q", got)
	}
	if got := p.Evict(); got != "" {
		t.Fatalf("expected empty policy, got %q", got)
	}
}

func TestLRURefillCountsAsUse(t *testing.T) {
	p := eviction.NewEvictionPolicy(eviction.LRU)

	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("a")

	if got := p.Evict(); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
}

func TestFIFOIgnoresReads(t *testing.T) {
	p := eviction.NewEvictionPolicy(eviction.FIFO)

	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a")
	p.OnPut("a")

	if got := p.Evict(); got != "a" {
		t.Fatalf("expected a, got %q", got)
	}
}

func TestRemoveForgetsKey(t *testing.T) {
	for _, pt := range []eviction.PolicyType{eviction.LRU, eviction.FIFO} {
		p := eviction.NewEvictionPolicy(pt)
		p.OnPut("a")
		p.OnPut("b")
		p.Remove("a")
		p.Remove("missing")

		if p.Len() != 1 {
			t.Fatalf("%s: expected 1 tracked key, got %d", pt, p.Len())
		}
		if got := p.Evict(); got != "b" {
			t.Fatalf("%s: expected b, got %q", pt, got)
		}
	}
}

func TestParsePolicyType(t *testing.T) {
	cases := map[string]eviction.PolicyType{
		"lru":  eviction.LRU,
		"FIFO": eviction.FIFO,
		"":     eviction.LRU,
	}
	for in, want := range cases {
		got, err := eviction.ParsePolicyType(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicyType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := eviction.ParsePolicyType("lfu"); err == nil {
		t.Fatal("expected error for unsupported policy")
	}
}
