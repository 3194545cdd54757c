package handlers

import (
	"context"
	"fmt"

	"github.com/jonas-p/go-shp"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// GeometryIssue is one problem found on one feature.
type GeometryIssue struct {
	Ref     int    `json:"ref"`
	Problem string `json:"problem"`
}

// GeometryCheck is the outcome of CheckGeometry.
type GeometryCheck struct {
	Repair            bool
	Topology          bool
	ProjectionDefined bool
	SpatialReference  SpatialReference
	Issues            []GeometryIssue
}

// CheckGeometry checks the spatial reference, geometry validity and shape
// type of layer. When the spatial reference is unknown nothing else is
// checked and ProjectionDefined is false.
func CheckGeometry(ctx context.Context, layer *utils.Layer, pp *utils.ParallelProcessor) (*GeometryCheck, error) {
	logger := utils.LoggerFromContext(ctx)
	check := &GeometryCheck{}

	logger.Info("Checking spatial reference...")
	check.SpatialReference = ParseSpatialReference(layer.Projection)
	if check.SpatialReference.Name == UnknownSRS {
		logger.Warn("Spatial reference is NOT defined!")
		logger.Infof("Spatial extent is: %s", layer.Extent)
		return check, nil
	}
	check.ProjectionDefined = true
	logger.Info(check.SpatialReference.Name)

	logger.Info("Checking geometry...")
	found, err := utils.ProcessBatch(ctx, pp, layer.Features, checkFeature, "check geometry")
	if err != nil {
		return nil, err
	}
	for _, issues := range found {
		check.Issues = append(check.Issues, issues...)
	}
	logger.Infof("%d geometry errors identified.", len(check.Issues))
	for _, issue := range check.Issues {
		logger.Debug("geometry error", "ref", issue.Ref, "problem", issue.Problem)
	}
	check.Repair = len(check.Issues) > 0

	logger.Info("Checking geometry type...")
	switch layer.ShapeType {
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		check.Topology = true
	case shp.MULTIPATCH:
		logger.Warnf("Input feature class has %s geometry, not Polygon!", ShapeTypeName(layer.ShapeType))
		check.Topology = true
	default:
		logger.Warnf("Input feature class has %s geometry, not Polygon!", ShapeTypeName(layer.ShapeType))
	}
	return check, nil
}

func checkFeature(ref int, f *utils.Feature) []GeometryIssue {
	var issues []GeometryIssue
	for _, problem := range f.Issues {
		issues = append(issues, GeometryIssue{Ref: ref, Problem: problem})
	}
	if f.Geom != nil && !f.Geom.IsValid() {
		issues = append(issues, GeometryIssue{Ref: ref, Problem: f.Geom.IsValidReason()})
	}
	return issues
}

// RepairGeometry deletes features without geometry and makes the others
// valid, keeping only their polygonal parts. It returns how many features
// were repaired and how many were deleted.
func RepairGeometry(ctx context.Context, layer *utils.Layer) (repaired, deleted int, err error) {
	logger := utils.LoggerFromContext(ctx)
	kept := layer.Features[:0]
	for i, f := range layer.Features {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		if f.Geom == nil || f.Geom.IsEmpty() {
			deleted++
			logger.Debug("deleting feature without geometry", "ref", i)
			continue
		}
		if !f.Geom.IsValid() {
			g := utils.Polygonal(f.Geom.MakeValid(), 0)
			if g == nil {
				deleted++
				logger.Debug("deleting feature with no area after repair", "ref", i)
				continue
			}
			f.Geom = g
			repaired++
		}
		f.Issues = nil
		kept = append(kept, f)
	}
	for i := len(kept); i < len(layer.Features); i++ {
		layer.Features[i] = nil
	}
	layer.Features = kept
	logger.Infof("Repaired %d features, deleted %d features without geometry.", repaired, deleted)
	return repaired, deleted, nil
}

// ShapeTypeName returns the display name of a shapefile shape type.
func ShapeTypeName(t shp.ShapeType) string {
	switch t {
	case shp.NULL:
		return "Null"
	case shp.POINT, shp.POINTZ, shp.POINTM:
		return "Point"
	case shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		return "Multipoint"
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM:
		return "Polyline"
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return "Polygon"
	case shp.MULTIPATCH:
		return "MultiPatch"
	}
	return fmt.Sprintf("shape type %d", t)
}
