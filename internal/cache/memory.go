package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hyperifyio/goenrich/internal/enrich"
)

// MemoryStore keeps results in process memory for the life of the process.
type MemoryStore struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryStore returns an empty store with the default freshness window.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{TTL: DefaultTTL, entries: make(map[string]entry)}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

// Get does not evict expired entries; a later Put overwrites them.
func (s *MemoryStore) Get(_ context.Context, url string) (enrich.Result, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[url]
	s.mu.RUnlock()
	if !ok || !e.fresh(s.now(), s.ttl()) {
		recordOp("memory", "get", "miss")
		return enrich.Result{}, false, nil
	}
	recordOp("memory", "get", "hit")
	return e.Result.Clone(), true, nil
}

func (s *MemoryStore) Put(_ context.Context, url string, result enrich.Result) error {
	e := entry{Result: result.Clone(), CreatedAt: s.now()}
	s.mu.Lock()
	if s.entries == nil {
		s.entries = make(map[string]entry)
	}
	s.entries[url] = e
	s.mu.Unlock()
	recordOp("memory", "put", "ok")
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, url string) error {
	s.mu.Lock()
	delete(s.entries, url)
	s.mu.Unlock()
	recordOp("memory", "invalidate", "ok")
	return nil
}

// Len reports the number of stored entries, fresh or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
