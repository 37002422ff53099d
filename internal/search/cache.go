package search

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cryptekbits/GeoDash/internal/domain"
)

// resultCache is the LRU of spec.md §4.D: keyed on the canonicalised
// argument tuple, size and TTL from config, entries immutable snapshots.
// golang-lru/v2's expirable variant gives both eviction policies (size +
// TTL) without hand-rolling an eviction goroutine.
type resultCache struct {
	lru *expirable.LRU[string, []domain.RankedCity]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = 5000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &resultCache{lru: expirable.NewLRU[string, []domain.RankedCity](size, nil, ttl)}
}

func (c *resultCache) Get(key string) ([]domain.RankedCity, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneRanked(v), true
}

func (c *resultCache) Set(key string, v []domain.RankedCity) {
	c.lru.Add(key, cloneRanked(v))
}

// Purge clears every cached entry; called when CorpusLoader re-runs, per
// spec.md's "purge it when CorpusLoader runs."
func (c *resultCache) Purge() {
	c.lru.Purge()
}

// cloneRanked copies the slice so cache hits never alias the caller's
// buffer — "mutation of results by callers must not affect the cache."
func cloneRanked(v []domain.RankedCity) []domain.RankedCity {
	out := make([]domain.RankedCity, len(v))
	copy(out, v)
	return out
}

// cacheKey builds the canonicalised key of spec.md §4.D: lowered query,
// limit, country filter, user country, user lat/lng rounded to 3 decimals,
// fuzzy threshold.
func cacheKey(p Params) string {
	var lat, lng string
	if p.UserLat != nil {
		lat = fmt.Sprintf("%.3f", round3(*p.UserLat))
	}
	if p.UserLng != nil {
		lng = fmt.Sprintf("%.3f", round3(*p.UserLng))
	}
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(p.Query)),
		fmt.Sprintf("%d", p.Limit),
		strings.ToUpper(p.CountryFilter),
		strings.ToUpper(p.UserCountry),
		lat, lng,
		fmt.Sprintf("%d", p.FuzzyThreshold),
	}, "|")
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
