package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hyperifyio/goenrich/internal/enrich"
)

func sampleResult(summary string) enrich.Result {
	return enrich.Result{
		Summary:        summary,
		WhatTheyDo:     []string{"builds things"},
		Keywords:       []string{"tools"},
		DerivedSignals: []string{"active blog"},
		Sources:        []enrich.Source{{URL: "https://example.com", Timestamp: "2026-01-01T00:00:00.000Z"}},
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, ok, _ := s.Get(ctx, "https://example.com"); ok {
		t.Fatalf("expected miss on empty store")
	}
	if err := s.Put(ctx, "https://example.com", sampleResult("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "https://example.com")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Summary != "one" {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
}

func TestMemoryStore_KeysAreExact(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, "https://example.com", sampleResult("one"))
	for _, k := range []string{"https://example.com/", "https://example.com?a=1", "HTTPS://example.com"} {
		if _, ok, _ := s.Get(ctx, k); ok {
			t.Fatalf("key %q must not match", k)
		}
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.Now = func() time.Time { return now }
	ctx := context.Background()
	_ = s.Put(ctx, "u", sampleResult("one"))

	now = now.Add(DefaultTTL - time.Second)
	if _, ok, _ := s.Get(ctx, "u"); !ok {
		t.Fatalf("expected hit just before expiry")
	}
	now = now.Add(time.Second)
	if _, ok, _ := s.Get(ctx, "u"); ok {
		t.Fatalf("expected miss at exactly the ttl")
	}
	if s.Len() != 1 {
		t.Fatalf("expired entry should not be evicted on read")
	}
	_ = s.Put(ctx, "u", sampleResult("two"))
	got, ok, _ := s.Get(ctx, "u")
	if !ok || got.Summary != "two" {
		t.Fatalf("put should overwrite the expired entry, got %+v ok=%v", got, ok)
	}
}

func TestMemoryStore_PutOverwritesAndRefreshes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.Now = func() time.Time { return now }
	ctx := context.Background()
	_ = s.Put(ctx, "u", sampleResult("one"))
	now = now.Add(20 * time.Hour)
	_ = s.Put(ctx, "u", sampleResult("two"))
	now = now.Add(20 * time.Hour)
	got, ok, _ := s.Get(ctx, "u")
	if !ok || got.Summary != "two" {
		t.Fatalf("expected refreshed entry, got %+v ok=%v", got, ok)
	}
}

func TestMemoryStore_Invalidate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Invalidate(ctx, "missing"); err != nil {
		t.Fatalf("invalidate of a missing key must be a no-op: %v", err)
	}
	_ = s.Put(ctx, "u", sampleResult("one"))
	_ = s.Invalidate(ctx, "u")
	if _, ok, _ := s.Get(ctx, "u"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r := sampleResult("one")
	_ = s.Put(ctx, "u", r)
	r.Keywords[0] = "mutated"

	got, _, _ := s.Get(ctx, "u")
	got.WhatTheyDo[0] = "mutated too"

	again, _, _ := s.Get(ctx, "u")
	if again.Keywords[0] != "tools" || again.WhatTheyDo[0] != "builds things" {
		t.Fatalf("stored entry was mutated: %+v", again)
	}
}

func TestMemoryStore_ZeroValueUsable(t *testing.T) {
	var s MemoryStore
	ctx := context.Background()
	if err := s.Put(ctx, "u", sampleResult("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "u"); !ok {
		t.Fatalf("expected hit")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("https://example.com/%d", i%4)
			for j := 0; j < 100; j++ {
				_ = s.Put(ctx, key, sampleResult("x"))
				_, _, _ = s.Get(ctx, key)
				if j%10 == 0 {
					_ = s.Invalidate(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}
