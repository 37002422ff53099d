package search

import (
	"context"
	"strings"

	"github.com/cryptekbits/GeoDash/internal/domain"
)

// SearchStream is the tiered response of spec.md §4.D: it yields the
// exact+prefix tier promptly on the returned channel, then — if fuzzy
// matching isn't skipped — yields a second, superset snapshot once fuzzy
// scoring completes. Both tiers are computed inline on the calling
// goroutine (spec.md §5: "the core is organised as a single-threaded
// cooperative request handler per worker process... no user-visible
// operation creates worker-internal threads") — the channel is only the
// two-snapshot delivery shape, not a background task; it arrives already
// fully buffered and closed by the time SearchStream returns. Callers that
// only want the final answer can drain and keep the last value; callers
// streaming partial results to a client (e.g. chunked HTTP) range over it
// and forward each snapshot in order.
func (e *Engine) SearchStream(ctx context.Context, p Params) <-chan []RankedSnapshot {
	out := make(chan []RankedSnapshot, 2)
	e.runSearchStream(ctx, p, out)
	close(out)
	return out
}

func (e *Engine) runSearchStream(ctx context.Context, p Params, out chan<- []RankedSnapshot) {
	p = e.normalize(p)
	if p.Query == "" || ctx.Err() != nil {
		return
	}

	if e.cache != nil {
		if hit, ok := e.cache.Get(cacheKey(p)); ok {
			out <- toSnapshots(hit)
			return
		}
	}

	seen := make(map[int32]struct{})
	var early []candidate
	for _, id := range e.idx.Exact(p.Query) {
		c, ok := e.idx.Get(id)
		if !ok {
			continue
		}
		if p.CountryFilter != "" && !strings.EqualFold(c.CountryCode, p.CountryFilter) {
			continue
		}
		seen[id] = struct{}{}
		early = append(early, candidate{city: c, tag: tagExact})
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
		early = append(early, candidate{city: c, tag: tagPrefix})
	}

	firstRanked := e.rank(early, p)
	if len(firstRanked) > p.Limit {
		firstRanked = firstRanked[:p.Limit]
	}
	out <- toSnapshots(firstRanked)
	if ctx.Err() != nil {
		return
	}

	if e.skipFuzzy(p, len(early)) {
		if e.cache != nil {
			e.cache.Set(cacheKey(p), firstRanked)
		}
		return
	}

	full := e.inMemoryTiers(p)
	secondRanked := e.rank(full, p)
	if len(secondRanked) > p.Limit {
		secondRanked = secondRanked[:p.Limit]
	}
	if e.cache != nil {
		e.cache.Set(cacheKey(p), secondRanked)
	}
	if ctx.Err() != nil {
		return
	}
	out <- toSnapshots(secondRanked)
}

// RankedSnapshot is an immutable value emitted on the stream channel —
// a plain struct copy, never a pointer into cache-owned memory.
type RankedSnapshot struct {
	ID          int32
	Name        string
	CountryCode string
	Rank        float64
	DistanceKm  float64
}

func toSnapshots(rc []domain.RankedCity) []RankedSnapshot {
	out := make([]RankedSnapshot, len(rc))
	for i, r := range rc {
		out[i] = RankedSnapshot{
			ID:          r.ID,
			Name:        r.Name,
			CountryCode: r.CountryCode,
			Rank:        r.Rank,
			DistanceKm:  r.DistanceKm,
		}
	}
	return out
}
