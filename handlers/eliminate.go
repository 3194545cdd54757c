package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// EliminateMode chooses the neighbour a selected record is merged into.
type EliminateMode string

const (
	// EliminateByLength merges into the neighbour sharing the longest border.
	EliminateByLength EliminateMode = "length"
	// EliminateByArea merges into the largest neighbour.
	EliminateByArea EliminateMode = "area"
)

// ParseEliminateMode validates a mode name.
func ParseEliminateMode(s string) (EliminateMode, error) {
	switch m := EliminateMode(strings.ToLower(strings.TrimSpace(s))); m {
	case EliminateByLength, EliminateByArea:
		return m, nil
	}
	return "", utils.NewError(utils.ErrCodeInvalidInput, "unknown eliminate mode %q (want length or area)", s)
}

// EliminateResult counts what Eliminate did.
type EliminateResult struct {
	Layer    *utils.Layer
	Where    string
	Selected int
	Merged   int
	Kept     int
}

// CheckEliminateInput reports which flag fields layer has. AREA_SQKM and at
// least one flag field are required.
func CheckEliminateInput(ctx context.Context, layer *utils.Layer) (gaps, overlaps bool, err error) {
	utils.LoggerFromContext(ctx).Info("checking inputs...")
	if !layer.HasField(AreaField) {
		return false, false, utils.NewError(utils.ErrCodeMissingField,
			"Field %s is required and cannot be found in %s", AreaField, layer.Name)
	}
	gaps = layer.HasField(GapsField)
	overlaps = layer.HasField(OverlapsField)
	if !gaps && !overlaps {
		return false, false, utils.NewError(utils.ErrCodeMissingField, "No overlap or gap field found in %s", layer.Name)
	}
	return gaps, overlaps, nil
}

// WhereClause renders the selection as an attribute query.
func WhereClause(gaps, overlaps bool, maxArea float64) string {
	switch {
	case gaps && overlaps:
		return fmt.Sprintf("(gaps = 1 OR overlaps = 1) AND AREA_SQKM < %v", maxArea)
	case gaps:
		return fmt.Sprintf("gaps = 1 AND AREA_SQKM < %v", maxArea)
	default:
		return fmt.Sprintf("overlaps = 1 AND AREA_SQKM < %v", maxArea)
	}
}

func selectForEliminate(layer *utils.Layer, gaps, overlaps bool, maxArea float64) []bool {
	selected := make([]bool, layer.Count())
	for i, f := range layer.Features {
		flagged := false
		if gaps {
			v, ok := utils.AsInt(layer.Value(f, GapsField))
			flagged = ok && v == FlagGap
		}
		if overlaps && !flagged {
			v, ok := utils.AsInt(layer.Value(f, OverlapsField))
			flagged = ok && v == FlagOverlap
		}
		area, ok := utils.AsFloat(layer.Value(f, AreaField))
		selected[i] = flagged && ok && area < maxArea
	}
	return selected
}

// Eliminate merges the selected gap and overlap records smaller than
// maxArea into a neighbouring unselected record and writes the result as
// <input>_elim. Records with no neighbour to merge into are kept.
func Eliminate(ctx context.Context, layer *utils.Layer, maxArea float64, mode EliminateMode, pp *utils.ParallelProcessor) (*EliminateResult, error) {
	logger := utils.LoggerFromContext(ctx)
	if maxArea <= 0 {
		return nil, utils.NewError(utils.ErrCodeInvalidInput, "maximum area must be positive, got %v", maxArea)
	}
	gaps, overlaps, err := CheckEliminateInput(ctx, layer)
	if err != nil {
		return nil, err
	}

	result := &EliminateResult{Where: WhereClause(gaps, overlaps, maxArea)}
	logger.Infof("Where query: %s", result.Where)
	logger.Infof("Eliminating polygons from %s", layer.Path)

	selected := selectForEliminate(layer, gaps, overlaps, maxArea)
	var targets []*geos.Geom
	for i, f := range layer.Features {
		if selected[i] {
			result.Selected++
			continue
		}
		targets = append(targets, f.Geom)
	}
	index := reindex(layer, selected, targets)

	// Choices are made against the input geometries, as one batch.
	absorbed := make(map[int][]*geos.Geom)
	keep := make([]bool, layer.Count())
	for i, f := range layer.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !selected[i] {
			keep[i] = true
			continue
		}
		target := chooseNeighbour(layer, index, f.Geom, mode)
		if target < 0 {
			logger.Warnf("Record %d has no neighbour to merge into and is kept.", i)
			keep[i] = true
			result.Kept++
			continue
		}
		absorbed[target] = append(absorbed[target], f.Geom)
		result.Merged++
	}

	out := utils.NewLayer(layer.Name+"_elim", layer.Fields)
	out.Projection = layer.Projection
	out.Encoding = layer.Encoding
	out.Path = DerivedPath(layer.Path, "_elim")
	var merged []*utils.Feature
	for i, f := range layer.Features {
		if !keep[i] {
			continue
		}
		c := &utils.Feature{Values: append([]any{}, f.Values...), Geom: f.Geom}
		if pieces, ok := absorbed[i]; ok {
			g, err := CascadedUnion(append([]*geos.Geom{f.Geom}, pieces...))
			if err != nil {
				return nil, utils.WrapError(utils.ErrCodeInternal, err, "failed to merge into record %d", i)
			}
			c.Geom = utils.Polygonal(g, 0)
			merged = append(merged, c)
		}
		out.Features = append(out.Features, c)
	}

	mergedLayer := &utils.Layer{Name: out.Name, Fields: out.Fields, Features: merged}
	if err := CalculateAreas(ctx, mergedLayer, pp); err != nil {
		return nil, err
	}
	result.Layer = out
	logger.Infof("Eliminated %d of %d selected polygons, %d kept.", result.Merged, result.Selected, result.Kept)

	if out.Path != "" {
		if err := ReplaceLayer(ctx, out.Path, out); err != nil {
			return nil, err
		}
		logger.Infof("created %s", out.Path)
	}
	return result, nil
}

// reindex builds a spatial index of the unselected records sized to them.
func reindex(layer *utils.Layer, selected []bool, targets []*geos.Geom) *utils.SpatialIndex {
	index := utils.NewSpatialIndex(utils.CellSizeFor(targets))
	for i, f := range layer.Features {
		if !selected[i] {
			index.AddGeometry(f.Geom, i)
		}
	}
	return index
}

// chooseNeighbour returns the index of the unselected record g should merge
// into, or -1. Only records sharing a border with g qualify; ties go to the
// lower index.
func chooseNeighbour(layer *utils.Layer, index *utils.SpatialIndex, g *geos.Geom, mode EliminateMode) int {
	if g == nil || g.IsEmpty() {
		return -1
	}
	boundary := g.Boundary()
	best, bestScore := -1, 0.0
	for _, c := range index.FindNeighbors(g, 0) {
		shared := boundary.Intersection(c.Geom.Boundary()).Length()
		if shared <= 0 {
			continue
		}
		score := shared
		if mode == EliminateByArea {
			area, ok := utils.AsFloat(layer.Value(layer.Features[c.Index], AreaField))
			if !ok {
				area = utils.GeodesicAreaSqKm(c.Geom)
			}
			score = area
		}
		if best < 0 || score > bestScore {
			best, bestScore = c.Index, score
		}
	}
	return best
}
