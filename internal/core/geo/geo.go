package geo

import "math"

// EarthRadiusKm is the mean earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a geographic coordinate pair in decimal degrees.
type Point struct {
	// Lat is the latitude, between -90 and 90.
	Lat float64 `json:"lat"`
	// Lng is the longitude, between -180 and 180.
	Lng float64 `json:"lng"`
}

// Valid reports whether the point holds finite, in-range coordinates.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineKm returns the great-circle distance in kilometers between two
// coordinates. The central-angle argument is clamped to [0, 1] so antipodal
// points and floating-point rounding never produce NaN.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance returns the great-circle distance in kilometers between two points.
func Distance(from, to Point) float64 {
	return HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
}

// RouteProgress approximates the fraction of a route completed by comparing
// the distance traveled from the origin against the total route distance.
// The result is clamped to [0, 1].
//
// A nil current position means no fix has been reported yet and yields 0.
// Malformed coordinates also yield 0 rather than propagating NaN. A
// zero-length route with a reported position counts as complete.
func RouteProgress(origin, destination Point, current *Point) float64 {
	if current == nil {
		return 0
	}
	if !origin.Valid() || !destination.Valid() || !current.Valid() {
		return 0
	}

	total := Distance(origin, destination)
	if total == 0 {
		return 1
	}

	traveled := Distance(origin, *current)
	fraction := traveled / total

	if fraction < 0 || math.IsNaN(fraction) {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
