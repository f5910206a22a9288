package shared

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the sphere radius every distance in groupwatch is computed on
const EarthRadiusMeters = 6371000

// Position represents a WGS84 coordinate in degrees
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPosition creates a new position
func NewPosition(lat, lng float64) Position {
	return Position{Lat: lat, Lng: lng}
}

// DistanceTo returns the great-circle distance in meters to another position
func (p Position) DistanceTo(other Position) float64 {
	return Haversine(p.Lat, p.Lng, other.Lat, other.Lng)
}

// Valid checks the coordinate ranges
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// String returns string representation of position
func (p Position) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", p.Lat, p.Lng)
}

// Haversine computes the distance in meters between two lat/lng pairs
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dPhi := toRad(lat2 - lat1)
	dLambda := toRad(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
