// Package geo implements component E of spec.md, GeoEngine: a bounding
// rectangle pre-filter plus Haversine refinement for radius queries.
package geo

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/index"
	"github.com/cryptekbits/GeoDash/internal/metrics"
	"github.com/cryptekbits/GeoDash/internal/store"
)

// kmPerDegreeLat is spec.md §4.E's conversion constant.
const kmPerDegreeLat = 111.32

// Engine answers find_by_coordinates queries against an InMemoryIndex's
// optional R-tree first. When the in-memory index was built without one
// (index.Options.Spatial false), it falls back to GeoStore.RadiusSearch —
// the backend's own spatial auxiliary (the geohash bucket index on sqlite,
// PostGIS ST_DWithin on postgres) — and only scans every row in memory when
// neither is available.
type Engine struct {
	idx     *index.Index
	store   store.GeoStore
	metrics *metrics.Collectors
}

// New builds a GeoEngine over idx, using st as the spatial-auxiliary
// fallback when idx has none. Radius clamping is deliberately left to
// callers (spec.md §9's open question resolved in favor of no core-level
// clamp); GeoEngine accepts any radius_km > 0.
func New(idx *index.Index, st store.GeoStore) *Engine {
	return &Engine{idx: idx, store: st}
}

// SetMetrics attaches Prometheus collectors, observed on every
// FindByCoordinates call from this point on. Nil-safe.
func (e *Engine) SetMetrics(mc *metrics.Collectors) {
	e.metrics = mc
}

// FindByCoordinates implements spec.md §4.E's algorithm: compute a
// conservative bounding rectangle, query the spatial auxiliary (or scan
// every city when none exists), refine with Haversine, sort ascending by
// distance.
func (e *Engine) FindByCoordinates(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error) {
	if e.metrics != nil {
		start := time.Now()
		defer func() { e.metrics.RadiusLatency.Observe(time.Since(start).Seconds()) }()
	}

	if lat < -90 || lat > 90 {
		return nil, geoerr.InvalidParameter("lat", "latitude out of range [-90, 90]")
	}
	if lng < -180 || lng > 180 {
		return nil, geoerr.InvalidParameter("lng", "longitude out of range [-180, 180]")
	}
	if radiusKm <= 0 {
		return nil, geoerr.InvalidParameter("radius_km", "radius_km must be positive")
	}

	latRadius := radiusKm / kmPerDegreeLat
	cosLat := math.Abs(math.Cos(lat * math.Pi / 180))
	// Clamp near the poles to avoid dividing by (near) zero, per spec.md
	// §4.E step 1.
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngRadius := radiusKm / (kmPerDegreeLat * cosLat)

	minLat, maxLat := lat-latRadius, lat+latRadius
	minLng, maxLng := lng-lngRadius, lng+lngRadius

	ids, hasSpatial := e.idx.SearchRect(minLat, maxLat, minLng, maxLng)

	var out []domain.DistancedCity
	switch {
	case hasSpatial:
		out = e.refine(ids, lat, lng, radiusKm)
	case e.store != nil:
		cands, err := e.store.RadiusSearch(ctx, lat, lng, radiusKm)
		if err != nil {
			return nil, err
		}
		out = e.refineCities(cands, lat, lng, radiusKm)
	default:
		out = e.scanAll(lat, lng, radiusKm)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

func (e *Engine) refine(ids []int32, lat, lng, radiusKm float64) []domain.DistancedCity {
	var out []domain.DistancedCity
	for _, id := range ids {
		c, ok := e.idx.Get(id)
		if !ok {
			continue
		}
		d := domain.HaversineKm(lat, lng, c.Lat, c.Lng)
		if d <= radiusKm {
			out = append(out, domain.DistancedCity{City: c, DistanceKm: d})
		}
	}
	return out
}

// refineCities re-derives the Haversine distance for each of GeoStore's
// pre-filtered candidates and drops anything the store's looser bounding
// test let through. Recomputing rather than trusting a store-reported
// distance keeps the figure identical across backends regardless of
// whether the candidate came from PostGIS's ST_DistanceSphere or a bare
// geohash bucket match.
func (e *Engine) refineCities(cands []domain.DistancedCity, lat, lng, radiusKm float64) []domain.DistancedCity {
	var out []domain.DistancedCity
	for _, cand := range cands {
		d := domain.HaversineKm(lat, lng, cand.Lat, cand.Lng)
		if d <= radiusKm {
			out = append(out, domain.DistancedCity{City: cand.City, DistanceKm: d})
		}
	}
	return out
}

// scanAll is the last-resort fallback for an Engine with neither an
// in-memory spatial index nor a GeoStore reference: scan every row in
// by_id with Haversine (correctness preserved, latency degrades), per
// spec.md §4.E's last paragraph.
func (e *Engine) scanAll(lat, lng, radiusKm float64) []domain.DistancedCity {
	var out []domain.DistancedCity
	for _, id := range e.idx.AllIDs() {
		c, ok := e.idx.Get(id)
		if !ok {
			continue
		}
		d := domain.HaversineKm(lat, lng, c.Lat, c.Lng)
		if d <= radiusKm {
			out = append(out, domain.DistancedCity{City: c, DistanceKm: d})
		}
	}
	return out
}
