package specificity

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when a non-positive size is requested.
const DefaultCacheSize = 1024

// CachedCalculator memoizes a Calculator in an LRU cache keyed by selector
// text. Safe for concurrent use.
type CachedCalculator struct {
	calc  *Calculator
	cache *lru.Cache[string, Result]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// NewCachedCalculator wraps calc with a cache holding up to size results.
// A nil calc selects a Calculator with the default rules.
func NewCachedCalculator(calc *Calculator, size int) *CachedCalculator {
	if calc == nil {
		calc = NewCalculator()
	}
	if size <= 0 {
		size = DefaultCacheSize
	}

	cc := &CachedCalculator{calc: calc}
	cache, err := lru.NewWithEvict(size, func(string, Result) {
		cc.evictions.Add(1)
	})
	if err != nil {
		// Only possible with a non-positive size, which is excluded above
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	cc.cache = cache

	return cc
}

// Calculate returns the specificity of selector, computing it on a miss.
// The returned token slice is a private copy.
func (cc *CachedCalculator) Calculate(selector string) Result {
	if res, ok := cc.cache.Get(selector); ok {
		cc.hits.Add(1)
		return res.Clone()
	}

	cc.misses.Add(1)
	res := cc.calc.Calculate(selector)
	cc.cache.Add(selector, res)
	return res.Clone()
}

// Purge drops every cached result and resets the counters. Entries dropped
// by a purge are not counted as evictions.
func (cc *CachedCalculator) Purge() {
	// The evict callback runs for every purged entry before Purge returns
	cc.cache.Purge()
	cc.hits.Store(0)
	cc.misses.Store(0)
	cc.evictions.Store(0)
}

// Stats returns the current cache counters.
func (cc *CachedCalculator) Stats() CacheStats {
	return CacheStats{
		Hits:      cc.hits.Load(),
		Misses:    cc.misses.Load(),
		Evictions: cc.evictions.Load(),
		Size:      cc.cache.Len(),
	}
}
