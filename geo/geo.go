// Package geo holds the distance helpers used for delivery zones and arrival estimates.
package geo

import (
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p lies inside the latitude/longitude ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle distance between a and b in kilometers (haversine).
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Zone is a circular service area.
type Zone struct {
	Center   Point   `json:"center"`
	RadiusKm float64 `json:"radiusKm"`
}

func (z Zone) Contains(p Point) bool {
	return Distance(z.Center, p) <= z.RadiusKm
}

// EstimateTravelTime converts a distance into a travel duration at speedKmh.
// Each multiplier (traffic, weather, ...) scales the result.
func EstimateTravelTime(distanceKm, speedKmh float64, multipliers ...float64) time.Duration {
	if speedKmh <= 0 || distanceKm <= 0 {
		return 0
	}

	minutes := distanceKm / speedKmh * 60
	for _, m := range multipliers {
		minutes *= m
	}

	return time.Duration(math.Round(minutes * float64(time.Minute)))
}
