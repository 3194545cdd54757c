package utils

import (
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geos"
)

// Ring problems reported while assembling polygons from shapefile parts.
const (
	IssueShortRing     = "short ring (fewer than 4 points)"
	IssueUnclosedRing  = "unclosed ring"
	IssueRingOrdering  = "incorrect ring ordering"
	IssueNullGeometry  = "null geometry"
	IssueEmptyGeometry = "empty geometry"
)

type ring struct {
	flat []float64
	area float64
}

// PolygonFromRings assembles a polygonal geometry from shapefile parts.
// Each part is a flat XY coordinate list. Clockwise rings are shells and
// counter-clockwise rings are holes, which are assigned to the smallest
// shell containing them. Problems found on the way are returned as issues
// and the geometry is built as well as possible.
func PolygonFromRings(parts [][]float64) (*geos.Geom, []string, error) {
	var issues []string
	var shells, holes []ring

	for _, flat := range parts {
		if len(flat) < 8 {
			issues = append(issues, IssueShortRing)
			continue
		}
		n := len(flat)
		if flat[0] != flat[n-2] || flat[1] != flat[n-1] {
			issues = append(issues, IssueUnclosedRing)
			flat = append(flat[:n:n], flat[0], flat[1])
		}
		r := ring{flat: flat, area: math.Abs(geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).Area())}
		if xy.IsRingCounterClockwise(geom.XY, flat) {
			holes = append(holes, r)
		} else {
			shells = append(shells, r)
		}
	}

	if len(shells) == 0 && len(holes) == 0 {
		return nil, issues, nil
	}

	// Smallest shells first so a hole lands in its tightest container.
	sort.SliceStable(shells, func(i, j int) bool { return shells[i].area < shells[j].area })

	owned := make([][]ring, len(shells))
	for _, h := range holes {
		p := geom.Coord{h.flat[0], h.flat[1]}
		placed := false
		for i, s := range shells {
			if xy.IsPointInRing(geom.XY, p, s.flat) {
				owned[i] = append(owned[i], h)
				placed = true
				break
			}
		}
		if !placed {
			issues = append(issues, IssueRingOrdering)
			shells = append(shells, ring{flat: reverseRing(h.flat), area: h.area})
			owned = append(owned, nil)
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, s := range shells {
		flat := append([]float64{}, s.flat...)
		ends := []int{len(flat)}
		for _, h := range owned[i] {
			flat = append(flat, h.flat...)
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			return nil, issues, fmt.Errorf("assembling polygon: %w", err)
		}
	}

	var t geom.T = mp
	if mp.NumPolygons() == 1 {
		t = mp.Polygon(0)
	}
	g, err := geomToGEOS(t)
	if err != nil {
		return nil, issues, err
	}
	return g, issues, nil
}

// RingsFromGeom returns the rings of a polygonal geometry in shapefile order:
// each shell clockwise followed by its holes counter-clockwise. Non-polygonal
// members of a collection are skipped.
func RingsFromGeom(g *geos.Geom) ([][]float64, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	t, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}

	var polygons []*geom.Polygon
	collectPolygons(t, &polygons)

	var rings [][]float64
	for _, p := range polygons {
		for i := 0; i < p.NumLinearRings(); i++ {
			lr := p.LinearRing(i)
			flat := flatXY(lr.FlatCoords(), lr.Stride())
			ccw := xy.IsRingCounterClockwise(geom.XY, flat)
			if (i == 0 && ccw) || (i > 0 && !ccw) {
				flat = reverseRing(flat)
			}
			rings = append(rings, flat)
		}
	}
	return rings, nil
}

// HolesAsPolygons returns every interior ring of g as a polygon of its own.
func HolesAsPolygons(g *geos.Geom) ([]*geos.Geom, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	t, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}

	var polygons []*geom.Polygon
	collectPolygons(t, &polygons)

	var holes []*geos.Geom
	for _, p := range polygons {
		for i := 1; i < p.NumLinearRings(); i++ {
			lr := p.LinearRing(i)
			flat := flatXY(lr.FlatCoords(), lr.Stride())
			h, err := geomToGEOS(geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}))
			if err != nil {
				return nil, err
			}
			holes = append(holes, h)
		}
	}
	return holes, nil
}

func collectPolygons(t geom.T, out *[]*geom.Polygon) {
	switch g := t.(type) {
	case *geom.Polygon:
		if g.NumLinearRings() > 0 {
			*out = append(*out, g)
		}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			collectPolygons(g.Polygon(i), out)
		}
	case *geom.GeometryCollection:
		for _, child := range g.Geoms() {
			collectPolygons(child, out)
		}
	}
}

// MapCoords returns a copy of g with every XY coordinate passed through fn.
func MapCoords(g *geos.Geom, fn func(x, y float64) (float64, float64, error)) (*geos.Geom, error) {
	if g == nil {
		return nil, nil
	}
	t, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	if err := mapFlat(t, fn); err != nil {
		return nil, err
	}
	return geomToGEOS(t)
}

func mapFlat(t geom.T, fn func(x, y float64) (float64, float64, error)) error {
	if gc, ok := t.(*geom.GeometryCollection); ok {
		for _, child := range gc.Geoms() {
			if err := mapFlat(child, fn); err != nil {
				return err
			}
		}
		return nil
	}
	flat := t.FlatCoords()
	stride := t.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		x, y, err := fn(flat[i], flat[i+1])
		if err != nil {
			return err
		}
		flat[i], flat[i+1] = x, y
	}
	return nil
}

func geomToGEOS(t geom.T) (*geos.Geom, error) {
	b, err := wkb.Marshal(t, wkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("encoding geometry: %w", err)
	}
	g, err := geos.NewGeomFromWKB(b)
	if err != nil {
		return nil, fmt.Errorf("building geometry: %w", err)
	}
	return g, nil
}

func flatXY(flat []float64, stride int) []float64 {
	if stride == 2 {
		return append([]float64{}, flat...)
	}
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

func reverseRing(flat []float64) []float64 {
	out := make([]float64, len(flat))
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		out[2*i] = flat[2*(n-1-i)]
		out[2*i+1] = flat[2*(n-1-i)+1]
	}
	return out
}
