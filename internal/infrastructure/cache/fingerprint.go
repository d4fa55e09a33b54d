package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/metrics"
)

const (
	defaultFingerprintCapacity = 10000
	defaultFingerprintTTL      = 7 * 24 * time.Hour
)

// FingerprintCache memoizes image fingerprints by URL with a TTL and a bounded
// capacity. It is shared by all requests. Lookups never hold a lock while the
// underlying source downloads an image: compute first, then store.
type FingerprintCache struct {
	source domain.FingerprintSource
	lru    *expirable.LRU[string, domain.Fingerprint]
}

// NewFingerprintCache wraps source with an LRU cache
func NewFingerprintCache(source domain.FingerprintSource, capacity int, ttl time.Duration) *FingerprintCache {
	if capacity <= 0 {
		capacity = defaultFingerprintCapacity
	}
	if ttl <= 0 {
		ttl = defaultFingerprintTTL
	}

	return &FingerprintCache{
		source: source,
		lru:    expirable.NewLRU[string, domain.Fingerprint](capacity, nil, ttl),
	}
}

// Fingerprint returns the cached fingerprint for imageURL, computing it on a miss.
// Failed computations are not cached.
func (c *FingerprintCache) Fingerprint(ctx context.Context, imageURL string) (domain.Fingerprint, bool) {
	if hash, ok := c.lru.Get(imageURL); ok {
		metrics.RecordFingerprintLookup("hit")
		return hash, true
	}

	hash, ok := c.source.Fingerprint(ctx, imageURL)
	if !ok {
		metrics.RecordFingerprintLookup("failed")
		return 0, false
	}

	metrics.RecordFingerprintLookup("miss")
	c.lru.Add(imageURL, hash)
	return hash, true
}

// Len returns the number of cached fingerprints
func (c *FingerprintCache) Len() int {
	return c.lru.Len()
}
