package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var capeTownCBD = Point{Lat: -33.9249, Lng: 18.4241}

func TestDistance(t *testing.T) {
	t.Run("same point is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Distance(capeTownCBD, capeTownCBD))
	})

	t.Run("table mountain is a short hop", func(t *testing.T) {
		d := Distance(capeTownCBD, Point{Lat: -33.9628, Lng: 18.4098})
		assert.Greater(t, d, 0.0)
		assert.Less(t, d, 10.0)
		assert.InDelta(t, 4.4, d, 0.3)
	})

	t.Run("symmetric", func(t *testing.T) {
		other := Point{Lat: -26.2041, Lng: 28.0473}
		assert.InDelta(t, Distance(capeTownCBD, other), Distance(other, capeTownCBD), 1e-9)
	})

	t.Run("route legs sum stays bounded", func(t *testing.T) {
		waypoints := []Point{
			capeTownCBD,
			{Lat: -33.9300, Lng: 18.4300},
			{Lat: -33.9350, Lng: 18.4350},
			{Lat: -33.9400, Lng: 18.4400},
		}
		total := 0.0
		for i := 0; i < len(waypoints)-1; i++ {
			total += Distance(waypoints[i], waypoints[i+1])
		}
		assert.Greater(t, total, 0.0)
		assert.Less(t, total, 20.0)
	})
}

func TestZoneContains(t *testing.T) {
	zone := Zone{Center: capeTownCBD, RadiusKm: 5}

	assert.True(t, zone.Contains(Point{Lat: -33.9300, Lng: 18.4300}))
	assert.False(t, zone.Contains(Point{Lat: -33.9800, Lng: 18.4800}))
	assert.True(t, zone.Contains(capeTownCBD))
}

func TestEstimateTravelTime(t *testing.T) {
	assert.Equal(t, 10*time.Minute, EstimateTravelTime(5, 30))
	assert.Equal(t, 54*time.Minute, EstimateTravelTime(15, 30, 1.5, 1.2))
	assert.Equal(t, time.Duration(0), EstimateTravelTime(5, 0))
	assert.Equal(t, time.Duration(0), EstimateTravelTime(0, 30))
}

func TestPointValid(t *testing.T) {
	assert.True(t, capeTownCBD.Valid())
	assert.False(t, Point{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: -181}.Valid())
}
