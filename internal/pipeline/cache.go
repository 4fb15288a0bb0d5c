package pipeline

import (
	"strconv"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey identifies an aggregation: the downloaded dataset plus the display
// resolution. The base resolution is fixed per Builder.
type cacheKey struct {
	Dataset    string
	Resolution int
}

func (k cacheKey) String() string {
	return k.Dataset + "@r" + strconv.Itoa(k.Resolution)
}

// AggregationCache is a bounded LRU of aggregation maps. Cached maps are
// shared between callers and must not be modified.
type AggregationCache struct {
	lru *lru.Cache[cacheKey, domain.AggregationMap]
}

// NewAggregationCache creates a cache holding at most size maps.
func NewAggregationCache(size int) (*AggregationCache, error) {
	c, err := lru.New[cacheKey, domain.AggregationMap](size)
	if err != nil {
		return nil, err
	}
	return &AggregationCache{lru: c}, nil
}

func (c *AggregationCache) get(k cacheKey) (domain.AggregationMap, bool) {
	return c.lru.Get(k)
}

func (c *AggregationCache) add(k cacheKey, m domain.AggregationMap) {
	c.lru.Add(k, m)
}

// Len reports the number of cached maps.
func (c *AggregationCache) Len() int {
	return c.lru.Len()
}

// Purge drops every cached map.
func (c *AggregationCache) Purge() {
	c.lru.Purge()
}
