package geo

import (
	"math"
	"strconv"
)

// EarthRadius is the mean radius of the spherical Earth model, in meters.
const EarthRadius = 6371000.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle distance in meters between two
// coordinates using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Between is Distance for two points.
func Between(a, b Point) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Format renders a distance for display: whole meters below one kilometer,
// kilometers with one decimal otherwise.
func Format(meters float64) string {
	if meters < 1000 {
		return strconv.FormatFloat(roundHalfUp(meters), 'f', 0, 64) + " m"
	}
	km := roundHalfUp(meters/100) / 10
	return strconv.FormatFloat(km, 'f', 1, 64) + " km"
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
