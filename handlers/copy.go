package handlers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// WorkspaceSuffix ends the name of every ingest workspace directory.
const WorkspaceSuffix = "_ingest"

// CopyOptions controls MakeCopy.
type CopyOptions struct {
	// Reproject projects the copy to WGS84 geographic coordinates.
	Reproject bool
	// Precision is the number of decimals kept after reprojection.
	Precision int
	// Renames maps current field names to new ones.
	Renames map[string]string
}

// PrepareWorkspace creates outFolder and the <iso>_ingest workspace inside
// it, returning the absolute workspace path.
func PrepareWorkspace(ctx context.Context, outFolder, iso string) (string, error) {
	logger := utils.LoggerFromContext(ctx)

	logger.Info("Creating output path.")
	abs, err := filepath.Abs(outFolder)
	if err != nil {
		return "", utils.WrapError(utils.ErrCodeInvalidInput, err, "invalid output folder %s", outFolder)
	}

	logger.Info("Creating output workspace (if it doesn't exist).")
	ws := filepath.Join(abs, iso+WorkspaceSuffix)
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", utils.WrapError(utils.ErrCodeInternal, err, "failed to create workspace %s", ws)
	}
	return ws, nil
}

// WorkingCopyPath is the path of the working copy inside a workspace.
func WorkingCopyPath(workspace, iso string) string {
	return filepath.Join(workspace, iso+WorkspaceSuffix+".shp")
}

// MakeCopy writes a copy of layer to the workspace, optionally projected to
// WGS84 and with fields renamed. The input layer is not modified.
func MakeCopy(ctx context.Context, layer *utils.Layer, workspace, iso string, opts CopyOptions) (*utils.Layer, error) {
	logger := utils.LoggerFromContext(ctx)

	out := CloneLayer(layer)
	out.Name = iso + WorkspaceSuffix
	out.Path = WorkingCopyPath(workspace, iso)

	if opts.Reproject {
		logger.Warn("Output coordinate system is different than input")
		logger.Warn("Check alignment of output features against known reference source.")
		if _, err := Reproject(ctx, out, opts.Precision); err != nil {
			return nil, err
		}
	}

	logger.Info("Creating working copy of feature class.")
	if err := ApplyRenames(ctx, out, opts.Renames); err != nil {
		return nil, err
	}
	if err := ReplaceLayer(ctx, out.Path, out); err != nil {
		return nil, err
	}
	logger.Debug("wrote working copy", "path", out.Path, "features", out.Count())
	return out, nil
}

// ReplaceLayer writes layer to path, deleting an existing dataset there first
// so no stale sidecar files survive.
func ReplaceLayer(ctx context.Context, path string, layer *utils.Layer) error {
	if utils.Exists(path) {
		utils.LoggerFromContext(ctx).Debugf("Deleting existing %s", path)
		if err := utils.DeleteLayer(path); err != nil {
			return utils.WrapError(utils.ErrCodeInternal, err, "failed to delete %s", path)
		}
	}
	return utils.WriteLayer(path, layer)
}

// AddUnionUID adds the union_uid field and numbers the features from 1.
func AddUnionUID(ctx context.Context, layer *utils.Layer) {
	utils.LoggerFromContext(ctx).Info("Creating and populating unique ID field")
	idx := layer.AddField(utils.Field{Name: UnionUIDField, Type: utils.FieldNumber, Size: 10})
	for i, f := range layer.Features {
		f.Values[idx] = i + 1
	}
}

// CloneLayer returns a deep copy of layer.
func CloneLayer(layer *utils.Layer) *utils.Layer {
	out := utils.NewLayer(layer.Name, layer.Fields)
	out.Path = layer.Path
	out.ShapeType = layer.ShapeType
	out.Projection = layer.Projection
	out.Encoding = layer.Encoding
	out.Extent = layer.Extent
	out.Features = make([]*utils.Feature, len(layer.Features))
	for i, f := range layer.Features {
		c := &utils.Feature{
			Values: append([]any{}, f.Values...),
			Issues: append([]string(nil), f.Issues...),
		}
		if f.Geom != nil {
			c.Geom = f.Geom.Clone()
		}
		out.Features[i] = c
	}
	return out
}
