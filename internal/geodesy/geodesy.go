// Package geodesy provides the spherical-earth helpers used by the hex grid.
package geodesy

import "math"

const (
	// EarthRadiusMeters is the mean radius used for haversine distances.
	EarthRadiusMeters = 6371000.0

	// KmPerDegree is the flat-earth length of one degree of latitude
	// (and of longitude at the equator).
	KmPerDegree = 111.0
)

// DegreesToRadians converts decimal degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the great-circle distance between two points given in
// decimal degrees. NaN inputs yield NaN.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := DegreesToRadians(lat1)
	phi2 := DegreesToRadians(lat2)
	dPhi := DegreesToRadians(lat2 - lat1)
	dLambda := DegreesToRadians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	// rounding can push a just past 1 for antipodal points
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// DegreesPerKm returns how many degrees of latitude and longitude one kilometer
// spans around the given latitude. The approximation is local: it is only
// accurate close to lat and degrades as the area grows.
func DegreesPerKm(lat float64) (latDeg, lonDeg float64) {
	latDeg = 1 / KmPerDegree
	lonDeg = 1 / (KmPerDegree * math.Cos(DegreesToRadians(lat)))
	return latDeg, lonDeg
}
