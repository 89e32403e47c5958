package merger

import (
	"math"
)

// WGS84 ellipsoid.
const (
	earthRadiusKm = 6378.137
	flattening    = 1 / 298.257223563
	eccentricity2 = flattening * (2 - flattening)
)

// FlatEarth approximates distances by projecting coordinates onto a
// plane tangent to the ellipsoid at a reference latitude. Error grows
// with distance from that latitude and with the distance measured,
// but stays well under 1% across a city.
type FlatEarth struct {
	kx float64 // metres per degree of longitude
	ky float64 // metres per degree of latitude
}

func NewFlatEarth(latitude float64) *FlatEarth {
	m := math.Pi / 180 * earthRadiusKm * 1000
	cosLat := math.Cos(latitude * math.Pi / 180)
	w2 := 1 / (1 - eccentricity2*(1-cosLat*cosLat))
	w := math.Sqrt(w2)

	return &FlatEarth{
		kx: m * w * cosLat,
		ky: m * w * w2 * (1 - eccentricity2),
	}
}

// Distance in metres between two points given in degrees.
func (f *FlatEarth) Distance(aLat, aLon, bLat, bLon float64) float64 {
	dx := wrapLongitude(aLon-bLon) * f.kx
	dy := (aLat - bLat) * f.ky
	return math.Sqrt(dx*dx + dy*dy)
}

// Into [-180, 180].
func wrapLongitude(deg float64) float64 {
	return math.Remainder(deg, 360)
}
