package handlers

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// Fields written by the union analysis.
const (
	UnionUIDField = "union_uid"
	AreaField     = "AREA_SQKM"
	GapsField     = "gaps"
	OverlapsField = "overlaps"
)

// Flag values of the overlaps and gaps fields.
const (
	FlagNone    = 0
	FlagOverlap = 1
	FlagCentral = 2
	FlagGap     = 1
)

// MinFragmentArea drops overlay slivers smaller than this (in squared layer
// units) that come from floating point noise rather than real overlaps.
var MinFragmentArea = 1e-12

var areaFieldDef = utils.Field{Name: AreaField, Type: utils.FieldFloat, Size: 19, Precision: 8}

func flagField(name string) utils.Field {
	return utils.Field{Name: name, Type: utils.FieldNumber, Size: 6}
}

// UnionResult is the outcome of OverlapGapAnalysis.
type UnionResult struct {
	Layer    *utils.Layer
	Gaps     int
	Overlaps int
	// Dupes is the number of features split into several union records.
	Dupes int
	// Central is the number of dupes matched with a central polygon.
	Central int
}

// zone is a piece of the planar arrangement covered by exactly the owners.
type zone struct {
	id     int
	geom   *geos.Geom
	owners []int
}

type arrangement struct {
	zones   map[int]*zone
	byOwner map[int][]int
	nextID  int
}

func newArrangement() *arrangement {
	return &arrangement{zones: make(map[int]*zone), byOwner: make(map[int][]int)}
}

func (a *arrangement) add(g *geos.Geom, owners []int) {
	z := &zone{id: a.nextID, geom: g, owners: owners}
	a.nextID++
	a.zones[z.id] = z
	for _, o := range owners {
		a.byOwner[o] = append(a.byOwner[o], z.id)
	}
}

// candidates returns the live zones owned by any of owners, in creation order.
func (a *arrangement) candidates(owners []int) []*zone {
	seen := make(map[int]bool)
	var out []*zone
	for _, o := range owners {
		for _, id := range a.byOwner[o] {
			if z, ok := a.zones[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, z)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// insert overlays feature index i with geometry g onto the arrangement.
func (a *arrangement) insert(i int, g *geos.Geom, neighbours []int) {
	remaining := g.Clone()
	for _, z := range a.candidates(neighbours) {
		if remaining == nil {
			break
		}
		if !z.geom.Intersects(g) {
			continue
		}
		inter := utils.Polygonal(z.geom.Intersection(g), MinFragmentArea)
		if inter == nil {
			continue
		}
		outside := utils.Polygonal(z.geom.Difference(g), MinFragmentArea)

		delete(a.zones, z.id)
		owners := append(append([]int{}, z.owners...), i)
		a.add(inter, owners)
		if outside != nil {
			a.add(outside, z.owners)
		}
		remaining = utils.Polygonal(remaining.Difference(inter), MinFragmentArea)
	}
	if remaining != nil {
		a.add(remaining, []int{i})
	}
}

// sorted returns the zones ordered by their first owner, then creation.
func (a *arrangement) sorted() []*zone {
	out := make([]*zone, 0, len(a.zones))
	for _, z := range a.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].owners[0] != out[j].owners[0] {
			return out[i].owners[0] < out[j].owners[0]
		}
		return out[i].id < out[j].id
	})
	return out
}

// Union overlays layer with itself. Every zone covered by k features gives
// k records carrying the attributes of each covering feature; every area
// enclosed by the layer but covered by no feature gives one record with
// null attributes. AREA_SQKM is filled for all records.
func Union(ctx context.Context, layer *utils.Layer, pp *utils.ParallelProcessor) (*utils.Layer, error) {
	logger := utils.LoggerFromContext(ctx)

	geoms := make([]*geos.Geom, len(layer.Features))
	for i, f := range layer.Features {
		geoms[i] = f.Geom
	}
	index := utils.NewSpatialIndex(utils.CellSizeFor(geoms))
	for i, g := range geoms {
		index.AddGeometry(g, i)
	}

	sw := utils.NewStopwatch(logger)
	arr := newArrangement()
	tracker := pp.Progress.Track(int64(len(geoms)), "union")
	for i, g := range geoms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tracker.Increment()
		if g == nil || g.IsEmpty() {
			continue
		}
		var earlier []int
		for _, c := range index.Query(utils.BoundsOf(g), 0) {
			if c.Index < i {
				earlier = append(earlier, c.Index)
			}
		}
		arr.insert(i, g, earlier)
	}
	tracker.Finish()

	out := utils.NewLayer(layer.Name+"_union", layer.Fields)
	out.Projection = layer.Projection
	out.Encoding = layer.Encoding
	out.Extent = layer.Extent
	for _, z := range arr.sorted() {
		for _, owner := range z.owners {
			out.Features = append(out.Features, &utils.Feature{
				Geom:   z.geom.Clone(),
				Values: append([]any{}, layer.Features[owner].Values...),
			})
		}
	}

	gaps, err := Gaps(geoms)
	if err != nil {
		return nil, err
	}
	for _, hole := range gaps {
		gap := hole
		// Features inside a gap, such as islands in a lake, are not part of it.
		for _, c := range index.Query(utils.BoundsOf(hole), 0) {
			if gap == nil {
				break
			}
			if c.Geom.Intersects(gap) {
				gap = utils.Polygonal(gap.Difference(c.Geom), MinFragmentArea)
			}
		}
		if gap == nil {
			continue
		}
		out.Features = append(out.Features, &utils.Feature{
			Geom:   gap,
			Values: make([]any, len(out.Fields)),
		})
	}
	sw.Done("Union complete")

	if err := CalculateAreas(ctx, out, pp); err != nil {
		return nil, err
	}
	return out, nil
}

// CalculateAreas sets AREA_SQKM to the geodesic area of every record,
// adding the field when missing.
func CalculateAreas(ctx context.Context, layer *utils.Layer, pp *utils.ParallelProcessor) error {
	idx := layer.AddField(areaFieldDef)
	areas, err := utils.ProcessBatch(ctx, pp, layer.Features, func(_ int, f *utils.Feature) float64 {
		return utils.GeodesicAreaSqKm(f.Geom)
	}, "area")
	if err != nil {
		return err
	}
	for i, f := range layer.Features {
		f.Values[idx] = areas[i]
	}
	return nil
}

// OverlapGapAnalysis unions the working copy, counts and flags its gaps and
// overlaps and writes the result next to the copy as <copy>_union.
func OverlapGapAnalysis(ctx context.Context, layer *utils.Layer, pp *utils.ParallelProcessor) (*UnionResult, error) {
	logger := utils.LoggerFromContext(ctx)
	if !layer.HasField(UnionUIDField) {
		return nil, utils.NewError(utils.ErrCodeMissingField, "field %s is required and cannot be found in %s", UnionUIDField, layer.Name)
	}

	originalCount := layer.Count()
	logger.Info("Running Union operation.")
	union, err := Union(ctx, layer, pp)
	if err != nil {
		return nil, err
	}
	union.Path = DerivedPath(layer.Path, "_union")

	result := &UnionResult{Layer: union}
	postCount := union.Count()
	if postCount > originalCount {
		logger.Infof("%d overlaps and/or gaps in input feature class", postCount-originalCount)

		logger.Info("Counting overlaps and gaps.")
		uids := 0
		for _, f := range union.Features {
			if _, ok := utils.AsInt(union.Value(f, UnionUIDField)); ok {
				uids++
			} else {
				result.Gaps++
			}
		}
		result.Overlaps = uids - originalCount
		logger.Infof("Found %d gaps and %d overlaps.", result.Gaps, result.Overlaps)
	} else {
		logger.Info("No overlaps or gaps found!")
	}

	if result.Overlaps > 0 {
		result.Dupes, result.Central = FlagOverlaps(ctx, union)
	}
	if result.Gaps > 0 {
		FlagGaps(ctx, union)
	}

	if union.Path != "" {
		if err := ReplaceLayer(ctx, union.Path, union); err != nil {
			return nil, err
		}
		logger.Infof("created %s", union.Path)
	}
	return result, nil
}

// FlagOverlaps adds the overlaps field. Records of features split into
// several pieces are flagged 1, except the largest piece of each feature
// which is the central polygon and flagged 2. Everything else, gaps
// included, is 0. It returns the number of split features and how many of
// them got a central polygon.
func FlagOverlaps(ctx context.Context, union *utils.Layer) (dupes, central int) {
	logger := utils.LoggerFromContext(ctx)
	logger.Info("Flagging overlaps in union of the boundaries.")

	seen := make(map[int]int)
	for _, f := range union.Features {
		if uid, ok := utils.AsInt(union.Value(f, UnionUIDField)); ok {
			seen[uid]++
		}
	}

	logger.Info("Checking overlap sizes...")
	type largest struct {
		area float64
		ref  int
	}
	sizes := make(map[int]*largest)
	for uid, n := range seen {
		if n > 1 {
			sizes[uid] = &largest{ref: -1}
		}
	}
	for ref, f := range union.Features {
		uid, ok := utils.AsInt(union.Value(f, UnionUIDField))
		if !ok {
			continue
		}
		l, dupe := sizes[uid]
		if !dupe {
			continue
		}
		if area, _ := utils.AsFloat(union.Value(f, AreaField)); area > l.area {
			l.area, l.ref = area, ref
		}
	}

	mainPolys := make(map[int]bool)
	for _, l := range sizes {
		if l.ref >= 0 {
			mainPolys[l.ref] = true
		}
	}
	if len(mainPolys) != len(sizes) {
		logger.Warn("Not all overlap polygons were matched with a central (main) polygon.")
		logger.Warn("Overlaps should be manually reviewed.")
	} else {
		logger.Info("Main (central) overlap polygons identified")
	}

	logger.Info("Updating union feature class to flag overlaps (1) and central polys (2).")
	idx := union.AddField(flagField(OverlapsField))
	for ref, f := range union.Features {
		uid, ok := utils.AsInt(union.Value(f, UnionUIDField))
		_, dupe := sizes[uid]
		switch {
		case !ok || !dupe:
			f.Values[idx] = FlagNone
		case mainPolys[ref]:
			f.Values[idx] = FlagCentral
		default:
			f.Values[idx] = FlagOverlap
		}
	}
	return len(sizes), len(mainPolys)
}

// FlagGaps adds the gaps field: 1 for records without a union_uid, else 0.
func FlagGaps(ctx context.Context, union *utils.Layer) {
	utils.LoggerFromContext(ctx).Info("Flagging gaps in union of the boundaries.")
	idx := union.AddField(flagField(GapsField))
	for _, f := range union.Features {
		if _, ok := utils.AsInt(union.Value(f, UnionUIDField)); ok {
			f.Values[idx] = FlagNone
		} else {
			f.Values[idx] = FlagGap
		}
	}
}

// DerivedPath returns the shapefile path of a dataset named after the one
// at path plus suffix, in the same directory.
func DerivedPath(path, suffix string) string {
	if path == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(path), utils.LayerName(path)+suffix+".shp")
}
