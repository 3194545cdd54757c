package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geos"
)

func mustWKT(t *testing.T, wkt string) *geos.Geom {
	t.Helper()
	g, err := geos.NewGeomFromWKT(wkt)
	require.NoError(t, err)
	return g
}

func TestWriteReadLayerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc_ingest.shp")

	layer := NewLayer("abc_ingest", []Field{
		{Name: "NAME", Type: FieldString, Size: 20},
		{Name: "POP", Type: FieldNumber, Size: 10},
		{Name: "AREA_SQKM", Type: FieldFloat, Size: 19, Precision: 8},
	})
	layer.Projection = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	layer.Features = []*Feature{
		{
			Geom:   mustWKT(t, "POLYGON ((0 0, 4 0, 4 4, 0 4, 0 0), (1 1, 2 1, 2 2, 1 2, 1 1))"),
			Values: []any{"North", 1200, 3.25},
		},
		{
			Geom:   mustWKT(t, "MULTIPOLYGON (((10 0, 11 0, 11 1, 10 1, 10 0)), ((12 0, 13 0, 13 1, 12 1, 12 0)))"),
			Values: []any{"Islands", nil, nil},
		},
	}

	require.NoError(t, WriteLayer(path, layer))
	assert.True(t, Exists(path))

	got, err := ReadLayer(path)
	require.NoError(t, err)

	assert.Equal(t, "abc_ingest", got.Name)
	assert.Equal(t, []string{"NAME", "POP", "AREA_SQKM"}, got.FieldNames())
	require.Equal(t, 2, got.Count())
	assert.Equal(t, layer.Projection, got.Projection)

	first := got.Features[0]
	assert.Empty(t, first.Issues)
	assert.InDelta(t, 15.0, first.Geom.Area(), 1e-9)
	assert.Equal(t, "North", got.Value(first, "name"))
	assert.Equal(t, 1200, got.Value(first, "POP"))
	area, ok := AsFloat(got.Value(first, "AREA_SQKM"))
	require.True(t, ok)
	assert.InDelta(t, 3.25, area, 1e-9)

	second := got.Features[1]
	assert.Equal(t, 2, second.Geom.NumGeometries())
	assert.Nil(t, got.Value(second, "POP"))
}

func TestReadLayerMissingFile(t *testing.T) {
	_, err := ReadLayer(filepath.Join(t.TempDir(), "missing.shp"))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeFileNotFound))
}

func TestReadLayerWithoutProjection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noprj.shp")
	layer := NewLayer("noprj", []Field{{Name: "ID", Type: FieldNumber, Size: 10}})
	layer.Features = []*Feature{{Geom: mustWKT(t, "POLYGON ((0 0, 1 0, 1 1, 0 0))"), Values: []any{1}}}
	require.NoError(t, WriteLayer(path, layer))

	_, err := os.Stat(filepath.Join(filepath.Dir(path), "noprj.prj"))
	assert.True(t, os.IsNotExist(err))

	got, err := ReadLayer(path)
	require.NoError(t, err)
	assert.Empty(t, got.Projection)
}

func TestLayerFieldHelpers(t *testing.T) {
	layer := NewLayer("fields", []Field{{Name: "NAME", Type: FieldString, Size: 10}})
	layer.Features = []*Feature{{Values: []any{"a"}}}

	idx := layer.AddField(Field{Name: "union_uid", Type: FieldNumber, Size: 10})
	assert.Equal(t, 1, idx)
	assert.Len(t, layer.Features[0].Values, 2)
	assert.Equal(t, idx, layer.AddField(Field{Name: "UNION_UID", Type: FieldNumber, Size: 10}))

	require.NoError(t, layer.RenameField("name", "NAME_"))
	assert.True(t, layer.HasField("NAME_"))
	assert.True(t, IsCode(layer.RenameField("missing", "x"), ErrCodeMissingField))
	assert.True(t, IsCode(layer.RenameField("NAME_", "union_uid"), ErrCodeInvalidInput))
}

func TestShapefilePath(t *testing.T) {
	assert.Equal(t, "a/b.shp", ShapefilePath("a/b"))
	assert.Equal(t, "a/b.SHP", ShapefilePath("a/b.SHP"))
	assert.Equal(t, "b", LayerName("a/b.shp"))
}

func TestDeleteLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.shp")
	layer := NewLayer("gone", nil)
	layer.Projection = "GEOGCS[\"x\"]"
	layer.Features = []*Feature{{Geom: mustWKT(t, "POLYGON ((0 0, 1 0, 1 1, 0 0))")}}
	require.NoError(t, WriteLayer(path, layer))

	require.NoError(t, DeleteLayer(path))
	assert.False(t, Exists(path))
	require.NoError(t, DeleteLayer(path))
}

func TestWriteReadLayerEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fra_ingest.shp")
	layer := NewLayer("fra_ingest", []Field{{Name: "NAME", Type: FieldString, Size: 30}})
	layer.Encoding = "UTF-8"
	layer.Features = []*Feature{{Geom: mustWKT(t, "POLYGON ((0 0, 1 0, 1 1, 0 0))"), Values: []any{"Île-de-France"}}}
	require.NoError(t, WriteLayer(path, layer))

	cpg, err := os.ReadFile(filepath.Join(filepath.Dir(path), "fra_ingest.cpg"))
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", string(cpg))

	got, err := ReadLayer(path)
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", got.Encoding)
	assert.Equal(t, "Île-de-France", got.Value(got.Features[0], "NAME"))

	// No encoding, no sidecar.
	bare := filepath.Join(t.TempDir(), "bare.shp")
	layer.Encoding = ""
	require.NoError(t, WriteLayer(bare, layer))
	got, err = ReadLayer(bare)
	require.NoError(t, err)
	assert.Empty(t, got.Encoding)
}
