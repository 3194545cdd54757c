package utils

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geos"
)

// WGS84 ellipsoid.
const (
	WGS84SemiMajorKm   = 6378.137
	WGS84Flattening    = 1 / 298.257223563
	wgs84Eccentricity2 = WGS84Flattening * (2 - WGS84Flattening)
)

var (
	wgs84Eccentricity = math.Sqrt(wgs84Eccentricity2)
	authalicQPole     = authalicQ(1)
	// AuthalicRadiusKm is the radius of the sphere with the surface area of
	// the WGS84 ellipsoid.
	AuthalicRadiusKm = WGS84SemiMajorKm * math.Sqrt(authalicQPole/2)
)

// authalicQ is the q function of the authalic latitude for sin(lat).
func authalicQ(sinLat float64) float64 {
	e, e2 := wgs84Eccentricity, wgs84Eccentricity2
	return (1 - e2) * (sinLat/(1-e2*sinLat*sinLat) -
		math.Log((1-e*sinLat)/(1+e*sinLat))/(2*e))
}

// authalicLatitude maps a geodetic latitude in degrees to the latitude on
// the authalic sphere that encloses the same ellipsoidal area.
func authalicLatitude(lat float64) float64 {
	sinBeta := authalicQ(math.Sin(lat*math.Pi/180)) / authalicQPole
	return math.Asin(math.Max(-1, math.Min(1, sinBeta))) * 180 / math.Pi
}

// GeodesicAreaSqKm returns the area of a polygonal geometry in longitude /
// latitude degrees, in square kilometres on the WGS84 ellipsoid. Vertices are
// moved to authalic latitudes and the area is measured on the authalic
// sphere, which preserves ellipsoidal area.
func GeodesicAreaSqKm(g *geos.Geom) float64 {
	if g == nil || g.IsEmpty() {
		return 0
	}
	rings, err := RingsFromGeom(g)
	if err != nil {
		return 0
	}

	var total float64
	for _, flat := range rings {
		a := ringArea(flat)
		// RingsFromGeom orients shells clockwise and holes counter-clockwise.
		if xy.IsRingCounterClockwise(geom.XY, flat) {
			total -= a
		} else {
			total += a
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

func ringArea(flat []float64) float64 {
	n := len(flat) / 2
	if n > 1 && flat[0] == flat[2*(n-1)] && flat[1] == flat[2*(n-1)+1] {
		n--
	}
	if n < 3 {
		return 0
	}
	points := make([]s2.Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, s2.PointFromLatLng(s2.LatLngFromDegrees(authalicLatitude(flat[2*i+1]), flat[2*i])))
	}
	loop := s2.LoopFromPoints(points)
	loop.Normalize()
	return loop.Area() * AuthalicRadiusKm * AuthalicRadiusKm
}
