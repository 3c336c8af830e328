// Package geo provides the great-circle primitives the blocker and scorer
// are built on. Everything here is pure and independently testable; the
// haversine formula is mirrored as the haversine_m SQL function in the
// database migrations so the relational store can filter spatially.
package geo

import "math"

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371008.8

// metersPerDegreeLat is the great-circle length of one degree of latitude.
const metersPerDegreeLat = EarthRadiusM * math.Pi / 180

// Haversine returns the great-circle distance in meters between two
// (lat, lon) points given in WGS84 degrees. Symmetric, zero for identical
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// ValidCoordinates reports whether the point is inside the WGS84 domain.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Window returns the latitude and longitude half-widths, in degrees, of a
// box centered on lat that is guaranteed to contain every point within
// radiusM meters. The longitude width uses the smallest cosine inside the
// latitude band so the coarse pre-filter can never exclude a pair the exact
// haversine check would accept.
func Window(lat, radiusM float64) (dLat, dLon float64) {
	dLat = radiusM / metersPerDegreeLat

	edge := math.Abs(lat) + dLat
	if edge >= 90 {
		// Window touches a pole; every longitude is within reach.
		return dLat, 180
	}
	cos := math.Cos(edge * math.Pi / 180)
	dLon = radiusM / (metersPerDegreeLat * cos)
	if dLon > 180 {
		dLon = 180
	}
	return dLat, dLon
}
