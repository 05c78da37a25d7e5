// Package geo provides geodesic distance helpers for radius-scoped queries.
package geo

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean Earth radius used to convert angles to distances.
const earthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance between two coordinate pairs.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// WithinRadius reports whether the target point lies within radiusMeters of the centre.
func WithinRadius(centerLat, centerLng, lat, lng, radiusMeters float64) bool {
	if radiusMeters <= 0 {
		return false
	}
	center := s2.LatLngFromDegrees(centerLat, centerLng)
	target := s2.LatLngFromDegrees(lat, lng)
	limit := s1.Angle(radiusMeters / earthRadiusMeters)
	return center.Distance(target) <= limit
}
