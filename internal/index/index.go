// Package index implements component C of spec.md, InMemoryIndex: a
// per-process structure built once by scanning GeoStore, used by
// SearchEngine and GeoEngine for the whole lifetime of a worker.
package index

import (
	"context"
	"strings"
	"sync"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/store"
)

// NameID pairs an ascii-folded name with the id it belongs to, the
// iter_names(country?) contract of spec.md §4.C.
type NameID struct {
	AsciiName string
	ID        int32
}

// Index is the frozen-after-build structure spec.md §4.C describes:
// by_id, name_trie, ascii_trie, country_cities, and an optional
// spatial_index.
type Index struct {
	mu sync.RWMutex

	byID          map[int32]domain.City
	nameTrie      *trie
	asciiTrie     *trie
	countryCities map[string][]int32
	spatial       *spatialIndex // nil unless enabled and built successfully
	hasSpatial    bool

	// names holds every (ascii_name, id) pair in insertion order, serving
	// IterNames without re-walking both tries — the fuzzy stage needs a
	// flat enumerable universe, not a prefix structure.
	names []NameID
}

// Options controls what Build populates beyond the mandatory by_id/tries/
// country_cities.
type Options struct {
	// Spatial enables the optional R-tree, per spec.md §4.C
	// ("If R-tree support is enabled and present at build time...").
	Spatial bool
}

// New returns an empty Index, used directly by tests; production code
// should call Build.
func New() *Index {
	return &Index{
		byID:          make(map[int32]domain.City),
		nameTrie:      newTrie(),
		asciiTrie:     newTrie(),
		countryCities: make(map[string][]int32),
	}
}

// Build streams every row from the store once and populates the index,
// per spec.md §4.C's "Build protocol". After Build returns, name_trie and
// ascii_trie are frozen — nothing mutates them again for the Index's
// lifetime.
func Build(ctx context.Context, st store.GeoStore, opts Options, log logging.Logger) (*Index, error) {
	idx := New()
	if opts.Spatial {
		idx.spatial = newSpatialIndex()
	}

	count := 0
	err := st.StreamAll(ctx, func(c domain.City) error {
		idx.insert(c)
		count++
		return nil
	})
	if err != nil {
		return nil, err
	}
	idx.hasSpatial = opts.Spatial
	log.Info("in-memory index built",
		logging.Int("cities", count), logging.Bool("spatial", idx.hasSpatial))
	return idx, nil
}

func (idx *Index) insert(c domain.City) {
	idx.byID[c.ID] = c

	key := strings.ToLower(c.AsciiName)
	idx.nameTrie.insert(key, c.ID)
	idx.asciiTrie.insert(key, c.ID)
	idx.names = append(idx.names, NameID{AsciiName: key, ID: c.ID})

	cc := strings.ToLower(c.CountryCode)
	idx.countryCities[cc] = append(idx.countryCities[cc], c.ID)

	if idx.spatial != nil {
		idx.spatial.insert(c.ID, c.Lat, c.Lng)
	}
}

// Get is by_id's O(1) lookup.
func (idx *Index) Get(id int32) (domain.City, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	c, ok := idx.byID[id]
	return c, ok
}

// Exact is a terminal-node lookup on both tries, duplicates removed.
func (idx *Index) Exact(q string) []int32 {
	key := strings.ToLower(domain.AsciiFold(q))
	return dedupe(idx.nameTrie.exact(key), idx.asciiTrie.exact(key))
}

// Prefix collects every terminal-node id-list under the trie node at the
// folded prefix, intersected with country_cities[country] when country is
// given.
func (idx *Index) Prefix(q string, country string) []int32 {
	key := strings.ToLower(domain.AsciiFold(q))
	ids := dedupe(idx.nameTrie.prefix(key), idx.asciiTrie.prefix(key))
	if country == "" {
		return ids
	}
	allowed := idx.countryCities[strings.ToLower(country)]
	if len(allowed) == 0 {
		return nil
	}
	allowSet := make(map[int32]struct{}, len(allowed))
	for _, id := range allowed {
		allowSet[id] = struct{}{}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := allowSet[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IterNames returns every (ascii_name, id) pair, optionally restricted to
// a country, for the fuzzy stage's candidate enumeration.
func (idx *Index) IterNames(country string) []NameID {
	if country == "" {
		return idx.names
	}
	allowed := idx.countryCities[strings.ToLower(country)]
	if len(allowed) == 0 {
		return nil
	}
	allowSet := make(map[int32]struct{}, len(allowed))
	for _, id := range allowed {
		allowSet[id] = struct{}{}
	}
	out := make([]NameID, 0, len(allowed))
	for _, n := range idx.names {
		if _, ok := allowSet[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

// HasSpatial reports whether Build populated the optional R-tree.
func (idx *Index) HasSpatial() bool { return idx.hasSpatial }

// SearchRect is GeoEngine's bounding-box pre-filter entry point, delegating
// to the optional spatial index. Returns nil, false if no spatial index
// was built (GeoEngine then falls back to GeoStore.RadiusSearch, or to a
// full scan when it has no store, per spec.md §4.E).
func (idx *Index) SearchRect(minLat, maxLat, minLng, maxLng float64) ([]int32, bool) {
	if idx.spatial == nil {
		return nil, false
	}
	return idx.spatial.searchRect(minLat, maxLat, minLng, maxLng), true
}

// Len reports how many cities are indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}

// AllIDs returns every indexed id, for GeoEngine's full-scan fallback when
// no spatial auxiliary was built.
func (idx *Index) AllIDs() []int32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]int32, 0, len(idx.byID))
	for id := range idx.byID {
		out = append(out, id)
	}
	return out
}

func dedupe(lists ...[]int32) []int32 {
	seen := make(map[int32]struct{})
	var out []int32
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
