package records

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
)

// DefaultEstimateTTL bounds how long a local decryption is remembered
const DefaultEstimateTTL = 30 * time.Minute

// EstimateCache holds locally decrypted values by record key. It is never
// persisted and never authoritative for a verified record.
type EstimateCache struct {
	cache *cache.Cache
}

// NewEstimateCache creates a cache; ttl <= 0 uses DefaultEstimateTTL
func NewEstimateCache(ttl time.Duration) *EstimateCache {
	if ttl <= 0 {
		ttl = DefaultEstimateTTL
	}
	return &EstimateCache{cache: cache.New(ttl, 2*ttl)}
}

// Put remembers v as the local estimate for key
func (e *EstimateCache) Put(key string, v int64) {
	e.cache.SetDefault(key, v)
}

// Get returns LocalEstimate(v) or Unknown
func (e *EstimateCache) Get(key string) genetic.RecordValue {
	if v, ok := e.cache.Get(key); ok {
		if n, ok := v.(int64); ok {
			return genetic.EstimateOf(n)
		}
	}
	return genetic.UnknownValue()
}

// Best combines the record with any cached estimate
func (e *EstimateCache) Best(r genetic.Record) genetic.RecordValue {
	return genetic.Best(r, e.Get(r.Key))
}

// Invalidate forgets the estimate for key
func (e *EstimateCache) Invalidate(key string) {
	e.cache.Delete(key)
}

// Len returns the number of live estimates
func (e *EstimateCache) Len() int {
	return e.cache.ItemCount()
}

// Flush forgets every estimate
func (e *EstimateCache) Flush() {
	e.cache.Flush()
}
