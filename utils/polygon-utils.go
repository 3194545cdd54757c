package utils

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geos"
)

// DefaultPrecision is the number of decimals kept for geographic coordinates
// (about 1 cm at the equator).
const DefaultPrecision = 7

// TruncateGeometry rounds every coordinate of feature to precision decimals.
// The result may be invalid and should be re-checked by the caller.
func TruncateGeometry(feature *geos.Geom, precision int) (*geos.Geom, error) {
	if feature == nil {
		return nil, fmt.Errorf(`geometry is nil`)
	}
	return MapCoords(feature, func(x, y float64) (float64, float64, error) {
		newX, newY := truncateCoordinates(x, y, precision)
		return newX, newY, nil
	})
}

// PolygonalParts returns the polygons of g with positive area, flattening
// multi-geometries and collections. It is used to keep the areal result of
// overlay and MakeValid calls.
func PolygonalParts(g *geos.Geom) []*geos.Geom {
	if g == nil || g.IsEmpty() {
		return nil
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		if g.Area() > 0 {
			return []*geos.Geom{g}
		}
		return nil
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		var parts []*geos.Geom
		for i := 0; i < g.NumGeometries(); i++ {
			parts = append(parts, PolygonalParts(g.Geometry(i))...)
		}
		return parts
	}
	return nil
}

// Polygonal returns the areal part of g as a Polygon or MultiPolygon, or nil
// when nothing with an area larger than minArea is left.
func Polygonal(g *geos.Geom, minArea float64) *geos.Geom {
	var kept []*geos.Geom
	for _, p := range PolygonalParts(g) {
		if p.Area() > minArea {
			kept = append(kept, p.Clone())
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return geos.NewCollection(geos.TypeIDMultiPolygon, kept)
}

func truncateCoordinates(x float64, y float64, precision int) (float64, float64) {
	return roundFloat(x, uint(precision)), roundFloat(y, uint(precision))
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
