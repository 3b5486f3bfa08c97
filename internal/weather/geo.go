package weather

import "math"

const (
	// earthRadiusMiles is the mean Earth radius used for station distances.
	earthRadiusMiles = 3958.8

	// ResolveTolerance is how far, in degrees, the coordinates may drift
	// before the cached grid and station are re-resolved.
	ResolveTolerance = 0.01

	coordDecimals = 4
)

// HaversineMiles returns the great-circle distance between two points.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

// RoundCoord rounds to the 4 decimals NWS accepts in point lookups.
func RoundCoord(v float64) float64 {
	p := math.Pow(10, coordDecimals)
	return math.Round(v*p) / p
}

// NearestStation returns the station closest to lat/lon and its distance.
// ok is false for an empty list.
func NearestStation(stations []Station, lat, lon float64) (nearest Station, miles float64, ok bool) {
	miles = math.Inf(1)
	for _, s := range stations {
		d := HaversineMiles(lat, lon, s.Latitude, s.Longitude)
		if d < miles {
			nearest, miles, ok = s, d, true
		}
	}
	return nearest, miles, ok
}

// withinTolerance reports whether both deltas are at most ResolveTolerance.
func withinTolerance(lastLat, lastLon, lat, lon float64) bool {
	return math.Abs(lastLat-lat) <= ResolveTolerance && math.Abs(lastLon-lon) <= ResolveTolerance
}
