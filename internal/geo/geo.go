// Package geo provides the great-circle distance primitive, coarse area
// bucketing, and the service-area bounding box.
package geo

import (
	"fmt"
	"math"
)

// earthRadiusM is Earth's mean radius in meters.
const earthRadiusM = 6371000.0

// Point is a WGS 84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineMeters returns the great-circle distance between two points on a
// sphere of Earth's mean radius, in meters.
func HaversineMeters(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// AreaCode quantizes a point to a ~111 m bucket (3 decimal places) for
// privacy-safe aggregation. Logs and audit events carry this instead of raw
// coordinates.
func AreaCode(p Point) string {
	return fmt.Sprintf("%.3f,%.3f", p.Lat, p.Lon)
}

// BBox is a geographic bounding box: lon_min, lat_min, lon_max, lat_max.
type BBox [4]float64

// Contains reports whether the point lies inside the box, borders included.
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b[1] && p.Lat <= b[3] && p.Lon >= b[0] && p.Lon <= b[2]
}
