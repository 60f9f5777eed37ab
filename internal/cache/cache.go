package cache

import (
	"context"
	"time"

	"github.com/hyperifyio/goenrich/internal/enrich"
	"github.com/hyperifyio/goenrich/internal/metrics"
)

// DefaultTTL is the freshness window of a cached result.
const DefaultTTL = 24 * time.Hour

// Store maps an exact URL string to a previously extracted result.
//
// Keys are never normalized: a trailing slash or query string makes a
// distinct entry. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored result if it is younger than the freshness
	// window. Expired entries are reported as misses.
	Get(ctx context.Context, url string) (enrich.Result, bool, error)
	// Put replaces any entry for url with result and a fresh timestamp.
	Put(ctx context.Context, url string, result enrich.Result) error
	// Invalidate removes the entry for url; a missing entry is not an error.
	Invalidate(ctx context.Context, url string) error
}

// entry is what a store keeps per URL. It is replaced wholesale on Put.
type entry struct {
	Result    enrich.Result `json:"result"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (e entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) < ttl
}

func recordOp(backend, op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(backend, op, status).Inc()
}
