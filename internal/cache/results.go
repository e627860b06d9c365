package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dherrin84/mortscan/internal/pipeline"
)

// Results caches completed analyses keyed by upload content hash, so
// re-uploading the same PDF returns instantly instead of re-extracting.
type Results struct {
	cache *gocache.Cache
}

// NewResults creates a result cache with the given TTL. A zero or
// negative TTL disables caching entirely (Get always misses).
func NewResults(ttl time.Duration) *Results {
	if ttl <= 0 {
		return &Results{}
	}
	return &Results{
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get returns the cached analysis for a content hash, if present.
func (r *Results) Get(hash string) (*pipeline.Analysis, bool) {
	if r.cache == nil {
		return nil, false
	}
	if val, found := r.cache.Get(hash); found {
		return val.(*pipeline.Analysis), true
	}
	return nil, false
}

// Set stores an analysis under its content hash with the default TTL.
func (r *Results) Set(hash string, a *pipeline.Analysis) {
	if r.cache == nil {
		return
	}
	r.cache.Set(hash, a, gocache.DefaultExpiration)
}

// Len reports how many analyses are currently cached.
func (r *Results) Len() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.ItemCount()
}

// Flush drops every cached analysis.
func (r *Results) Flush() {
	if r.cache == nil {
		return
	}
	r.cache.Flush()
}
