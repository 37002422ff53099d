// Package geodash implements the GeoDash city-lookup core: an in-memory,
// multi-worker search index over a corpus of cities, backed by a
// persistent relational store.
package geodash

import "github.com/cryptekbits/GeoDash/internal/domain"

// City, RankedCity and DistancedCity are aliases of internal/domain's
// record types. The records live in internal/domain rather than here so
// that internal/store, internal/search, internal/geo, internal/index and
// internal/region can depend on them directly; this package depends on
// internal/worker, which depends on those packages, so the types can't
// live here without an import cycle. Validate is a method on domain.City
// and comes along for free through the alias.
type (
	City          = domain.City
	RankedCity    = domain.RankedCity
	DistancedCity = domain.DistancedCity
)

// AsciiFold lowercases and strips diacritics; see internal/domain.AsciiFold.
func AsciiFold(s string) string { return domain.AsciiFold(s) }
