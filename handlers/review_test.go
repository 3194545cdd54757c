package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-boundary-prep/utils"
)

const reviewTemplate = "../templates/gaps_overlaps_template.toml"

// reviewWorkspace writes abc_ingest and its union into an abc_ingest
// workspace and returns the union path.
func reviewWorkspace(t *testing.T, withOriginal bool) string {
	t.Helper()
	ctx, _ := testContext(t)
	ws := filepath.Join(t.TempDir(), "abc"+WorkspaceSuffix)
	require.NoError(t, os.MkdirAll(ws, 0o755))

	layer := polygonLayer(t, "abc_ingest", squareA, squareB)
	layer.Path = WorkingCopyPath(ws, "abc")
	require.NoError(t, utils.WriteLayer(layer.Path, layer))

	result, err := OverlapGapAnalysis(ctx, layer, testProcessor())
	require.NoError(t, err)
	if !withOriginal {
		require.NoError(t, utils.DeleteLayer(layer.Path))
	}
	return result.Layer.Path
}

func TestSetupProject(t *testing.T) {
	ctx, logs := testContext(t)
	dataset := reviewWorkspace(t, true)
	ws := filepath.Dir(dataset)

	result, err := SetupProject(ctx, dataset, ReviewOptions{Template: reviewTemplate, GeoJSON: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "abc_review.toml"), result.Path)
	assert.Contains(t, logs.String(), "Updating original_loaded")

	saved, err := LoadProject(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "abc_review", saved.Name)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.Created.IsZero())

	m := saved.FindMap("Gaps*")
	require.NotNil(t, m)
	assert.Equal(t, ReviewMapName, m.Name)
	require.Len(t, m.Layers, 5)
	for _, name := range []string{"gaps", "overlaps", "admin_union"} {
		lyr := m.Layer(name)
		require.NotNil(t, lyr, name)
		assert.Equal(t, DataSource{Workspace: ws, Dataset: "abc_ingest_union", WorkspaceFactory: ShapefileFactory}, lyr.Source)
	}
	assert.Equal(t, "overlaps = 1", m.Layer("overlaps").DefinitionQuery)
	assert.Equal(t, "abc_ingest", m.Layer(OriginalLayerName).Source.Dataset)
	assert.Equal(t, "reference", m.Layer("basemap").Source.Workspace)

	// Every piece of the two squares is an overlap or a central polygon.
	assert.Equal(t, 4, result.Exported)
	data, err := os.ReadFile(result.GeoJSONPath)
	require.NoError(t, err)
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 4)
}

func TestSetupProjectWithoutOriginal(t *testing.T) {
	ctx, logs := testContext(t)
	dataset := reviewWorkspace(t, false)
	output := filepath.Join(t.TempDir(), "custom.toml")

	result, err := SetupProject(ctx, dataset, ReviewOptions{Template: reviewTemplate, Output: output})
	require.NoError(t, err)
	assert.Equal(t, output, result.Path)
	assert.Empty(t, result.GeoJSONPath)
	assert.Contains(t, logs.String(), "Removing original_loaded")

	m := result.Project.FindMap(ReviewMapName)
	require.NotNil(t, m)
	assert.Len(t, m.Layers, 4)
	assert.Nil(t, m.Layer(OriginalLayerName))
}

func TestSetupProjectErrors(t *testing.T) {
	ctx, _ := testContext(t)

	_, err := SetupProject(ctx, filepath.Join(t.TempDir(), "missing.shp"), ReviewOptions{Template: reviewTemplate})
	assert.True(t, utils.IsCode(err, utils.ErrCodeFileNotFound))

	outside := filepath.Join(t.TempDir(), "abc_union.shp")
	require.NoError(t, utils.WriteLayer(outside, polygonLayer(t, "abc_union", squareA)))
	_, err = SetupProject(ctx, outside, ReviewOptions{Template: reviewTemplate})
	assert.True(t, utils.IsCode(err, utils.ErrCodeInvalidWorkspace))

	dataset := reviewWorkspace(t, true)
	_, err = SetupProject(ctx, dataset, ReviewOptions{Template: filepath.Join(t.TempDir(), "none.toml")})
	assert.True(t, utils.IsCode(err, utils.ErrCodeFileNotFound))
}

func TestLoadProjectInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("maps = [[[\n"), 0o644))
	_, err := LoadProject(path)
	assert.True(t, utils.IsCode(err, utils.ErrCodeInvalidInput))
}
