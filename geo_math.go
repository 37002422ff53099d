package geodash

import "github.com/cryptekbits/GeoDash/internal/domain"

// EarthRadiusKm is the sphere radius spec.md §4.E names explicitly for
// Haversine distance; see internal/domain.HaversineKm.
const EarthRadiusKm = domain.EarthRadiusKm

// HaversineKm returns the great-circle distance in kilometers between two
// (lat,lng) points; see internal/domain.HaversineKm.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return domain.HaversineKm(lat1, lng1, lat2, lng2)
}
