package handlers

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// Layer names the review template is wired by.
const (
	OriginalLayerName = "original_loaded"
	ReviewMapPattern  = "Gaps*"
	ReviewMapName     = "Gaps and Overlaps"
	ShapefileFactory  = "Shapefile"
)

// reboundLayers point at the union dataset being reviewed.
var reboundLayers = map[string]bool{
	"overlaps":    true,
	"gaps":        true,
	"admin_union": true,
}

// Project is a review project: maps of layers bound to datasets.
type Project struct {
	ID      string    `toml:"id,omitempty"`
	Name    string    `toml:"name"`
	Created time.Time `toml:"created,omitempty"`
	Maps    []Map     `toml:"maps"`
}

type Map struct {
	Name   string        `toml:"name"`
	Layers []ReviewLayer `toml:"layers"`
}

type ReviewLayer struct {
	Name            string     `toml:"name"`
	DefinitionQuery string     `toml:"definition_query,omitempty"`
	Source          DataSource `toml:"source"`
}

// DataSource locates a dataset: a directory and a dataset name in it.
type DataSource struct {
	Workspace        string `toml:"workspace"`
	Dataset          string `toml:"dataset"`
	WorkspaceFactory string `toml:"workspace_factory"`
}

// ReviewOptions controls SetupProject.
type ReviewOptions struct {
	Template string
	// Output is the project path; empty means <workspace>/<iso>_review.toml.
	Output string
	// GeoJSON exports the flagged records next to the project.
	GeoJSON bool
}

// ReviewResult describes what SetupProject wrote.
type ReviewResult struct {
	Project     *Project
	Path        string
	GeoJSONPath string
	Exported    int
}

// LoadProject reads a project or template file.
func LoadProject(path string) (*Project, error) {
	var p Project
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, utils.WrapError(utils.ErrCodeFileNotFound, err, "review template %s not found", path)
		}
		return nil, utils.WrapError(utils.ErrCodeInvalidInput, err, "invalid review template %s", path)
	}
	return &p, nil
}

// SaveProject writes p to path.
func SaveProject(path string, p *Project) error {
	f, err := os.Create(path)
	if err != nil {
		return utils.WrapError(utils.ErrCodeInternal, err, "failed to create project %s", path)
	}
	if err := toml.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		return utils.WrapError(utils.ErrCodeInternal, err, "failed to write project %s", path)
	}
	return f.Close()
}

// FindMap returns the first map whose name matches pattern, or nil.
func (p *Project) FindMap(pattern string) *Map {
	for i := range p.Maps {
		if ok, _ := filepath.Match(pattern, p.Maps[i].Name); ok {
			return &p.Maps[i]
		}
	}
	return nil
}

// Layer returns the layer called name, or nil.
func (m *Map) Layer(name string) *ReviewLayer {
	for i := range m.Layers {
		if m.Layers[i].Name == name {
			return &m.Layers[i]
		}
	}
	return nil
}

// SetupProject builds a review project for the union dataset at dataset
// from the template: the gaps map is renamed, its layers are bound to the
// dataset and the original_loaded layer to the working copy when one exists.
func SetupProject(ctx context.Context, dataset string, opts ReviewOptions) (*ReviewResult, error) {
	logger := utils.LoggerFromContext(ctx)

	dataset = utils.ShapefilePath(dataset)
	if !utils.Exists(dataset) {
		return nil, utils.NewError(utils.ErrCodeFileNotFound, "Cannot find input feature class %s", dataset)
	}
	abs, err := filepath.Abs(dataset)
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeInvalidInput, err, "Please specify full input path to feature class.")
	}
	toPath, toFC := filepath.Dir(abs), utils.LayerName(abs)
	if toPath == "" || toFC == "" {
		logger.Warnf("Cannot find %s", dataset)
		return nil, utils.NewError(utils.ErrCodeInvalidInput, "Please specify full input path to feature class.")
	}
	if !strings.HasSuffix(filepath.Base(toPath), WorkspaceSuffix) {
		return nil, utils.NewError(utils.ErrCodeInvalidWorkspace,
			"expected input to be in an ingest workspace (<iso>%s), got %s", WorkspaceSuffix, toPath)
	}
	iso := toFC
	if len(iso) > 3 {
		iso = iso[:3]
	}
	origFC := iso + WorkspaceSuffix

	project, err := LoadProject(opts.Template)
	if err != nil {
		return nil, err
	}
	m := project.FindMap(ReviewMapPattern)
	if m == nil {
		return nil, utils.NewError(utils.ErrCodeInvalidInput, "no map matching %s in template %s", ReviewMapPattern, opts.Template)
	}
	m.Name = ReviewMapName

	source := DataSource{Workspace: toPath, Dataset: toFC, WorkspaceFactory: ShapefileFactory}
	layers := m.Layers[:0]
	for _, lyr := range m.Layers {
		switch {
		case reboundLayers[lyr.Name]:
			logger.Infof("Updating %s", lyr.Name)
			lyr.Source = source
		case lyr.Name == OriginalLayerName:
			if !utils.Exists(filepath.Join(toPath, origFC)) {
				logger.Infof("Removing %s, %s not found", lyr.Name, origFC)
				continue
			}
			logger.Infof("Updating %s", lyr.Name)
			lyr.Source = DataSource{Workspace: toPath, Dataset: origFC, WorkspaceFactory: ShapefileFactory}
		}
		layers = append(layers, lyr)
	}
	m.Layers = layers

	project.ID = uuid.NewString()
	project.Name = iso + "_review"
	project.Created = time.Now().UTC().Truncate(time.Second)

	result := &ReviewResult{Project: project, Path: opts.Output}
	if result.Path == "" {
		result.Path = filepath.Join(toPath, iso+"_review.toml")
	}
	if err := SaveProject(result.Path, project); err != nil {
		return nil, err
	}
	logger.Infof("Saved review project %s", result.Path)

	if opts.GeoJSON {
		layer, err := utils.ReadLayer(abs)
		if err != nil {
			return nil, err
		}
		result.GeoJSONPath = filepath.Join(filepath.Dir(result.Path), toFC+"_review.geojson")
		result.Exported, err = utils.WriteGeoJSON(result.GeoJSONPath, layer, func(f *utils.Feature) bool {
			return isFlagged(layer, f)
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Exported %d flagged polygons to %s", result.Exported, result.GeoJSONPath)
	}
	return result, nil
}

// isFlagged reports whether f is a gap, an overlap or a central polygon.
func isFlagged(layer *utils.Layer, f *utils.Feature) bool {
	if v, ok := utils.AsInt(layer.Value(f, GapsField)); ok && v == FlagGap {
		return true
	}
	v, ok := utils.AsInt(layer.Value(f, OverlapsField))
	return ok && v >= FlagOverlap
}
