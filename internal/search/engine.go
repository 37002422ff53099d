// Package search implements component D of spec.md, SearchEngine: tiered
// exact/prefix/fuzzy matching, ranking, and result caching. This is the
// hottest path in GeoDash.
package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/index"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/metrics"
	"github.com/cryptekbits/GeoDash/internal/store"
)

// tag identifies which tier produced a candidate, stripped before results
// are returned — it only drives ranking.
type tag int

const (
	tagPrefix tag = iota
	tagExact
	tagFuzzy
)

type candidate struct {
	city       domain.City
	tag        tag
	fuzzyScore float64
}

// Params bundles one Search call's inputs, per spec.md §4.D.
type Params struct {
	Query          string
	Limit          int
	CountryFilter  string
	UserLat        *float64
	UserLng        *float64
	UserCountry    string
	FuzzyThreshold int
}

// Engine is the tiered matcher + ranker + cache. Built once per worker
// alongside its InMemoryIndex.
type Engine struct {
	idx   *index.Index
	store store.GeoStore
	cfg   config.View
	log   logging.Logger
	cache *resultCache

	maxLimit        int
	defaultLimit    int
	preferTextIndex bool // network backend + FTS present: tiers 1-3 replaced by GeoStore.TextSearch

	metrics *metrics.Collectors
}

// SetMetrics attaches Prometheus collectors, observed on every Search call
// from this point on. Nil-safe: an Engine with no collectors attached
// simply skips instrumentation.
func (e *Engine) SetMetrics(mc *metrics.Collectors) {
	e.metrics = mc
}

// New builds a SearchEngine over an already-built InMemoryIndex. st is
// only consulted for the network-backend FTS fast path; a nil-FTS embedded
// store still works fine, it's just never chosen.
func New(idx *index.Index, st store.GeoStore, cfg config.View, log logging.Logger) *Engine {
	e := &Engine{
		idx:          idx,
		store:        st,
		cfg:          cfg,
		log:          log,
		maxLimit:     cfg.GetInt("search.limits.max"),
		defaultLimit: cfg.GetInt("search.limits.default"),
	}
	if e.maxLimit <= 0 {
		e.maxLimit = 100
	}
	if e.defaultLimit <= 0 {
		e.defaultLimit = 10
	}
	if cfg.GetBool("search.cache.enabled") {
		e.cache = newResultCache(cfg.GetInt("search.cache.size"), cfg.GetDuration("search.cache.ttl"))
	}
	e.preferTextIndex = st != nil && st.Backend() == "network-server" && cfg.GetBool("database.network-server.fts")
	return e
}

// PurgeCache drops every cached entry, called after CorpusLoader re-runs.
func (e *Engine) PurgeCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

func (e *Engine) normalize(p Params) Params {
	p.Query = strings.TrimSpace(p.Query)
	if p.Limit <= 0 {
		p.Limit = e.defaultLimit
	}
	if p.Limit > e.maxLimit {
		p.Limit = e.maxLimit
	}
	if p.FuzzyThreshold <= 0 {
		p.FuzzyThreshold = e.cfg.GetInt("search.fuzzy.threshold")
	}
	if p.FuzzyThreshold <= 0 {
		p.FuzzyThreshold = 70
	}
	return p
}

// Search runs the full tiered pipeline and returns at most Limit results,
// ranked per spec.md §4.D. Empty query and unknown country_filter both
// degrade to an empty result rather than an error.
func (e *Engine) Search(ctx context.Context, p Params) ([]domain.RankedCity, error) {
	if e.metrics != nil {
		start := time.Now()
		defer func() { e.metrics.SearchLatency.Observe(time.Since(start).Seconds()) }()
	}

	p = e.normalize(p)
	if p.Query == "" {
		return nil, nil
	}

	if e.cache != nil {
		if hit, ok := e.cache.Get(cacheKey(p)); ok {
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			return hit, nil
		}
		if e.metrics != nil {
			e.metrics.CacheMisses.Inc()
		}
	}

	var candidates []candidate
	if e.preferTextIndex {
		ranked, err := e.textSearchTier(ctx, p)
		if err != nil {
			// Database errors in the FTS fallback degrade to pure
			// in-memory tiers, silently (a warning is logged).
			e.log.Warn("fts fallback failed, degrading to in-memory tiers", logging.Err(err))
			candidates = e.inMemoryTiers(p)
		} else {
			if e.cache != nil {
				e.cache.Set(cacheKey(p), ranked)
			}
			return ranked, nil
		}
	} else {
		candidates = e.inMemoryTiers(p)
	}

	ranked := e.rank(candidates, p)
	if len(ranked) > p.Limit {
		ranked = ranked[:p.Limit]
	}
	if e.cache != nil {
		e.cache.Set(cacheKey(p), ranked)
	}
	return ranked, nil
}

// inMemoryTiers runs exact -> prefix -> fuzzy against InMemoryIndex.
func (e *Engine) inMemoryTiers(p Params) []candidate {
	seen := make(map[int32]struct{})
	var candidates []candidate

	for _, id := range e.idx.Exact(p.Query) {
		c, ok := e.idx.Get(id)
		if !ok {
			continue
		}
		if p.CountryFilter != "" && !strings.EqualFold(c.CountryCode, p.CountryFilter) {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, candidate{city: c, tag: tagExact})
	}

	for _, id := range e.idx.Prefix(p.Query, p.CountryFilter) {
		if _, ok := seen[id]; ok {
			continue
		}
		c, ok := e.idx.Get(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, candidate{city: c, tag: tagPrefix})
	}

	if e.skipFuzzy(p, len(candidates)) {
		return candidates
	}

	folded := strings.ToLower(domain.AsciiFold(p.Query))
	names := e.idx.IterNames(p.CountryFilter)
	type scored struct {
		id    int32
		score float64
	}
	var fuzzyMatches []scored
	for _, n := range names {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		score := tokenSetRatio(folded, n.AsciiName)
		if score >= float64(p.FuzzyThreshold) {
			fuzzyMatches = append(fuzzyMatches, scored{id: n.ID, score: score})
		}
	}
	sort.Slice(fuzzyMatches, func(i, j int) bool { return fuzzyMatches[i].score > fuzzyMatches[j].score })
	if e.metrics != nil {
		e.metrics.FuzzyCandidates.Observe(float64(len(fuzzyMatches)))
	}
	if len(fuzzyMatches) > 100 {
		fuzzyMatches = fuzzyMatches[:100]
	}
	for _, m := range fuzzyMatches {
		c, ok := e.idx.Get(m.id)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{city: c, tag: tagFuzzy, fuzzyScore: m.score})
	}
	return candidates
}

// skipFuzzy implements spec.md §4.D's fuzzy-skip heuristic: skip if the
// query is 2 characters or shorter, or enough candidates already exist and
// the caller didn't ask for more than that.
func (e *Engine) skipFuzzy(p Params, gathered int) bool {
	if len(p.Query) <= 2 {
		return true
	}
	if gathered >= 5 && p.Limit <= gathered {
		return true
	}
	return false
}

// textSearchTier replaces tiers 1-3 with a single GeoStore.TextSearch call
// when the network backend's FTS auxiliary is preferred, per spec.md
// §4.D's "may be replaced by a single call... the downstream ranker is
// unchanged." Every hit is tagged exact when its ascii name matches the
// folded query outright, prefix otherwise, so the same score formula
// applies regardless of which tier produced the candidate.
func (e *Engine) textSearchTier(ctx context.Context, p Params) ([]domain.RankedCity, error) {
	hits, err := e.store.TextSearch(ctx, store.TextSearchParams{
		Query:   p.Query,
		Limit:   p.Limit * 4,
		Country: p.CountryFilter,
		UserLat: p.UserLat,
		UserLng: p.UserLng,
	})
	if err != nil {
		return nil, err
	}
	folded := strings.ToLower(domain.AsciiFold(p.Query))
	candidates := make([]candidate, 0, len(hits))
	for _, h := range hits {
		t := tagPrefix
		if strings.ToLower(h.AsciiName) == folded {
			t = tagExact
		}
		candidates = append(candidates, candidate{city: h.City, tag: t, fuzzyScore: h.Rank})
	}
	ranked := e.rank(candidates, p)
	if len(ranked) > p.Limit {
		ranked = ranked[:p.Limit]
	}
	return ranked, nil
}

// rank assigns each candidate the score formula of spec.md §4.D and sorts
// descending, ties broken by population then id.
func (e *Engine) rank(candidates []candidate, p Params) []domain.RankedCity {
	out := make([]domain.RankedCity, 0, len(candidates))
	for _, c := range candidates {
		s := 0.0
		switch c.tag {
		case tagExact:
			s += 100000
		case tagPrefix:
			s += 50000
		case tagFuzzy:
			fuzzy := c.fuzzyScore * 200
			if c.fuzzyScore > 80 {
				fuzzy *= 1.5
			}
			s += fuzzy
		}
		if p.UserCountry != "" && strings.EqualFold(c.city.CountryCode, p.UserCountry) {
			s += 25000
		}
		rc := domain.RankedCity{City: c.city, Rank: s}
		if p.UserLat != nil && p.UserLng != nil {
			dKm := domain.HaversineKm(*p.UserLat, *p.UserLng, c.city.Lat, c.city.Lng)
			rc.Rank += 50000 / (1 + dKm/50)
			rc.DistanceKm = dKm
		}
		out = append(out, rc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		if out[i].Population != out[j].Population {
			return out[i].Population > out[j].Population
		}
		return out[i].ID < out[j].ID
	})
	return out
}
