package handlers

import (
	"context"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// CheckOptions are the inputs of RunCheck.
type CheckOptions struct {
	Input     string
	ISO       string
	OutFolder string
	CheckISO  bool

	ReservedWordsFile string
	ISOOverrides      map[string]string
	Precision         int
	Processor         *utils.ParallelProcessor
}

// CheckResult collects what RunCheck found and wrote.
type CheckResult struct {
	ISO         string
	Workspace   string
	Renames     map[string]string
	Geometry    *GeometryCheck
	Reprojected bool
	Repaired    int
	Deleted     int
	Copy        *utils.Layer
	Union       *UnionResult
	Stats       []Stat
}

// RunCheck validates an input boundary layer and prepares it for review:
// field names, geometry, projection, a working copy in the ingest workspace
// and the flagged union of the copy with itself.
func RunCheck(ctx context.Context, opts CheckOptions) (*CheckResult, error) {
	logger := utils.LoggerFromContext(ctx)
	pp := opts.Processor
	if pp == nil {
		pp = utils.NewParallelProcessor(0)
	}
	result := &CheckResult{}

	result.ISO = ResolveISO(ctx, opts.ISO, opts.CheckISO, opts.ISOOverrides)

	logger.Info("Checking input params...")
	if !utils.Exists(opts.Input) {
		logger.Error("Please check your inputs and try again.")
		return nil, utils.NewError(utils.ErrCodeFileNotFound, "Input feature class %s not found!", opts.Input)
	}
	layer, err := utils.ReadLayer(opts.Input)
	if err != nil {
		return nil, err
	}
	result.Workspace, err = PrepareWorkspace(ctx, opts.OutFolder, result.ISO)
	if err != nil {
		return nil, err
	}

	logger.Info("Checking field names...")
	reserved := ReadReservedWords(ctx, opts.ReservedWordsFile)
	result.Renames = CheckFields(ctx, layer.FieldNames(), reserved)
	if len(result.Renames) > 0 {
		logger.Info("Found fields with reserved words in their names,")
		logger.Info("output feature class will have updated names.")
		logger.Info("Fields to be changed and the new names are:")
		logger.Infof("%v", result.Renames)
		logger.Info("Field names will be renamed in a copy of the feature class.")
	}

	logger.Info("Checking geometry...")
	result.Geometry, err = CheckGeometry(ctx, layer, pp)
	if err != nil {
		return nil, err
	}
	if !result.Geometry.ProjectionDefined {
		logger.Error("Please investigate and define a projection for the feature class!")
		logger.Error("Exiting without completing script.")
		return nil, utils.NewError(utils.ErrCodeMissingProjection, "Projection information is missing.")
	}

	isGeo, wgs84 := CheckSRS(ctx, result.Geometry.SpatialReference)
	result.Reprojected = !isGeo || !wgs84

	if !result.Geometry.Topology {
		return nil, utils.NewError(utils.ErrCodeInvalidGeometryType,
			"Input feature class does not contain polygons, please check input!")
	}

	logger.Info("Making a copy of the feature class to edit.")
	working, err := MakeCopy(ctx, layer, result.Workspace, result.ISO, CopyOptions{
		Reproject: result.Reprojected,
		Precision: opts.Precision,
		Renames:   result.Renames,
	})
	if err != nil {
		return nil, err
	}
	result.Copy = working

	if result.Geometry.Repair {
		logger.Warnf("Repairing geometry for %s.", working.Path)
		result.Repaired, result.Deleted, err = RepairGeometry(ctx, working)
		if err != nil {
			return nil, err
		}
	}

	AddUnionUID(ctx, working)
	if err := utils.WriteLayer(working.Path, working); err != nil {
		return nil, err
	}

	result.Union, err = OverlapGapAnalysis(ctx, working, pp)
	if err != nil {
		return nil, err
	}

	var flags []string
	if result.Union.Gaps > 0 {
		flags = append(flags, GapsField)
	}
	if result.Union.Overlaps > 0 {
		flags = append(flags, OverlapsField)
	}
	if len(flags) == 0 {
		logger.Info("No gaps or overlaps found in feature class.")
		return result, nil
	}
	result.Stats, err = GapOverlapStats(result.Union.Layer, flags)
	if err != nil {
		return nil, err
	}
	LogStats(ctx, result.Stats)
	return result, nil
}
