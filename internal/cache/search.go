package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/cases"
)

// SearchResult is a cached AI search answer: the names the model selected.
type SearchResult struct {
	Names    []string
	CachedAt time.Time
}

// SearchStats holds cache statistics.
type SearchStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// SearchCache remembers AI search answers per query and candidate list.
// A nil *SearchCache is valid and never hits.
type SearchCache struct {
	lru    *LRUCache[string, SearchResult]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewSearchCache creates a cache holding up to capacity answers for ttl.
func NewSearchCache(capacity int, ttl time.Duration) *SearchCache {
	return &SearchCache{lru: NewLRUCache[string, SearchResult](capacity, ttl)}
}

// SearchKey identifies a query against a candidate list. The query is
// compared case-insensitively and the candidate order does not matter.
func SearchKey(query string, candidates []string) string {
	sorted := slices.Clone(candidates)
	slices.Sort(sorted)

	h := sha256.New()
	h.Write([]byte(cases.Fold().String(strings.TrimSpace(query))))
	for _, name := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached names for key.
func (c *SearchCache) Get(key string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return slices.Clone(r.Names), true
}

// Set stores names for key.
func (c *SearchCache) Set(key string, names []string) {
	if c == nil {
		return
	}
	c.lru.Set(key, SearchResult{Names: slices.Clone(names), CachedAt: time.Now()})
}

// Clear drops every cached answer.
func (c *SearchCache) Clear() {
	if c == nil {
		return
	}
	c.lru.Clear()
}

// Stats returns hit and miss counts.
func (c *SearchCache) Stats() SearchStats {
	if c == nil {
		return SearchStats{}
	}
	return SearchStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.lru.Len()}
}
