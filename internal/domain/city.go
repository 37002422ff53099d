// Package domain holds the city-lookup core's shared record types. They
// live here, rather than in the root package, so that internal/store,
// internal/search, internal/geo, internal/index and internal/region can all
// depend on them directly without importing the root facade package (which
// itself depends on those internal packages) — the root package re-exports
// them as type aliases, the same pattern errors.go uses for geoerr.Error.
package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cryptekbits/GeoDash/internal/geoerr"
)

// City is the immutable record the whole core operates on. Once built by
// CorpusLoader it is never mutated — InMemoryIndex, SearchEngine and
// GeoEngine all hand out copies or read-only views of it.
type City struct {
	ID          int32   `json:"id"`
	Name        string  `json:"name"`
	AsciiName   string  `json:"ascii_name"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	State       string  `json:"state,omitempty"`
	StateCode   string  `json:"state_code,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Population  int64   `json:"population"`
	Timezone    string  `json:"timezone,omitempty"`

	// GeonameID and Source are external-ID/provenance fields carried over
	// from original_source/GeoDash/data/schema.py that spec.md §3 alludes
	// to ("external IDs") without enumerating.
	GeonameID *int64 `json:"geoname_id,omitempty"`
	Source    string `json:"source,omitempty"`
}

// RankedCity pairs a City with the rank SearchEngine/GeoStore assigned it.
// DistanceKm is only set when the caller supplied location bias, per
// spec.md §4.D's "annotate c.distance_km = d_km".
type RankedCity struct {
	City
	Rank       float64 `json:"rank"`
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// DistancedCity pairs a City with a distance in kilometers from a query
// point, used by GeoEngine and the location-aware SearchEngine ranker.
type DistancedCity struct {
	City
	DistanceKm float64 `json:"distance_km"`
}

// Validate checks the invariants of spec.md §3: country_code length 2,
// lat/lng within range, name/ascii_name non-empty. It does not check ID
// uniqueness — that's a store-level concern (bulk insert/upsert).
func (c City) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return geoerr.InvalidParameter("name", "city name is required")
	}
	if strings.TrimSpace(c.AsciiName) == "" {
		return geoerr.InvalidParameter("ascii_name", "ascii_name is required")
	}
	if len(c.CountryCode) != 2 {
		return geoerr.InvalidParameter("country_code", "country_code must be exactly 2 characters")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return geoerr.InvalidParameter("lat", "latitude out of range [-90, 90]")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return geoerr.InvalidParameter("lng", "longitude out of range [-180, 180]")
	}
	return nil
}

// AsciiFold lowercases and strips diacritics, yielding the comparison key
// the teacher's tries/inverted-index key on. The teacher (andreiashu-geobed)
// approximated this with plain strings.ToLower; spec.md §3 explicitly
// requires diacritic stripping ("folded, lowercase, diacritic-stripped"),
// so this does the full NFD-decompose-then-drop-combining-marks fold
// instead, same technique as x/text's own transform examples.
func AsciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(stripNonASCII(folded))
}

// stripNonASCII drops any rune that survived ASCII folding without a
// decomposition (e.g. CJK, Cyrillic) so ascii_name is always pure ASCII,
// per spec.md's "ASCII fold" glossary entry. Non-letter runes (spaces,
// hyphens, apostrophes, digits) are kept.
func stripNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}
