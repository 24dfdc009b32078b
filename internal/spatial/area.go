package spatial

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// TileRect returns the tile as an S2 lat/lng rectangle.
// Built from endpoints so the zoom 0 tile keeps its full longitude span.
func TileRect(zoom int, t TileXY) s2.Rect {
	south, west, north, east := TileBounds(zoom, t)
	return s2.Rect{
		Lat: r1.Interval{Lo: radians(south), Hi: radians(north)},
		Lng: s1.IntervalFromEndpoints(radians(west), radians(east)),
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// TileAreaKm2 returns the surface area of a tile on the sphere in square kilometers
func TileAreaKm2(zoom int, t TileXY) float64 {
	return TileRect(zoom, t).Area() * EarthRadiusKm * EarthRadiusKm
}

// TileEdgeMeters returns the length of the tile's northern edge in meters
func TileEdgeMeters(zoom int, t TileXY) float64 {
	_, west, north, east := TileBounds(zoom, t)
	return HaversineDistance(north, west, north, east)
}

// ExploredAreaKm2 sums the spherical area of the given tiles
func ExploredAreaKm2(zoom int, tiles []TileXY) float64 {
	var total float64
	for _, t := range tiles {
		total += TileAreaKm2(zoom, t)
	}
	return total
}
