package utils

import (
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-geos"
)

// SpatialIndex is a uniform grid over geometry bounding boxes.
type SpatialIndex struct {
	geometries map[int]*IndexedGeometry
	cellSize   float64
	grid       map[string][]*IndexedGeometry
}

type IndexedGeometry struct {
	Geom   *geos.Geom
	Index  int
	Bounds Extent
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialIndex{
		geometries: make(map[int]*IndexedGeometry),
		cellSize:   cellSize,
		grid:       make(map[string][]*IndexedGeometry),
	}
}

// CellSizeFor picks a cell size of roughly the mean feature extent.
func CellSizeFor(geoms []*geos.Geom) float64 {
	var sum float64
	var n int
	for _, g := range geoms {
		if g == nil || g.IsEmpty() {
			continue
		}
		b := g.Bounds()
		sum += math.Max(b.MaxX-b.MinX, b.MaxY-b.MinY)
		n++
	}
	if n == 0 || sum == 0 {
		return 1
	}
	return sum / float64(n)
}

func (si *SpatialIndex) AddGeometry(geom *geos.Geom, index int) {
	if geom == nil || geom.IsEmpty() {
		return
	}

	indexedGeom := &IndexedGeometry{
		Geom:   geom,
		Index:  index,
		Bounds: BoundsOf(geom),
	}

	si.geometries[index] = indexedGeom
	si.eachCell(indexedGeom.Bounds, func(key string) {
		si.grid[key] = append(si.grid[key], indexedGeom)
	})
}

// Query returns the indexed geometries whose bounds intersect bounds grown
// by distance, ordered by index.
func (si *SpatialIndex) Query(bounds Extent, distance float64) []*IndexedGeometry {
	grown := Extent{
		MinX: bounds.MinX - distance,
		MinY: bounds.MinY - distance,
		MaxX: bounds.MaxX + distance,
		MaxY: bounds.MaxY + distance,
	}

	candidates := make(map[int]*IndexedGeometry)
	si.eachCell(grown, func(key string) {
		for _, candidate := range si.grid[key] {
			if grown.Intersects(candidate.Bounds) {
				candidates[candidate.Index] = candidate
			}
		}
	})

	result := make([]*IndexedGeometry, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}

// FindNeighbors returns the geometries, other than geom itself, within
// distance of geom.
func (si *SpatialIndex) FindNeighbors(geom *geos.Geom, distance float64) []*IndexedGeometry {
	if geom == nil || geom.IsEmpty() {
		return nil
	}
	bounds := BoundsOf(geom)

	neighbors := make([]*IndexedGeometry, 0)
	for _, candidate := range si.Query(bounds, distance) {
		if candidate.Geom == geom {
			continue
		}
		if geom.Distance(candidate.Geom) <= distance {
			neighbors = append(neighbors, candidate)
		}
	}
	return neighbors
}

func (si *SpatialIndex) eachCell(b Extent, fn func(string)) {
	minCellX := int(math.Floor(b.MinX / si.cellSize))
	minCellY := int(math.Floor(b.MinY / si.cellSize))
	maxCellX := int(math.Floor(b.MaxX / si.cellSize))
	maxCellY := int(math.Floor(b.MaxY / si.cellSize))

	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			fn(getCellKey(x, y))
		}
	}
}

// Intersects reports whether two boxes overlap or touch.
func (e Extent) Intersects(o Extent) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// BoundsOf returns the extent of g.
func BoundsOf(g *geos.Geom) Extent {
	b := g.Bounds()
	return Extent{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

func getCellKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}

// Len returns the number of indexed geometries.
func (si *SpatialIndex) Len() int {
	return len(si.geometries)
}
