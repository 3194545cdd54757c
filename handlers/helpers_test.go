package handlers

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-boundary-prep/utils"
)

func mustWKT(t *testing.T, wkt string) *geos.Geom {
	t.Helper()
	g, err := geos.NewGeomFromWKT(wkt)
	require.NoError(t, err)
	return g
}

// testContext returns a context whose logger writes into the returned buffer.
func testContext(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return utils.WithLogger(context.Background(), utils.NewLogger(&buf, log.DebugLevel)), &buf
}

func testProcessor() *utils.ParallelProcessor {
	return utils.NewParallelProcessor(2)
}

// polygonLayer builds a WGS84 layer with one feature per WKT and a
// union_uid numbered from 1.
func polygonLayer(t *testing.T, name string, wkts ...string) *utils.Layer {
	t.Helper()
	layer := utils.NewLayer(name, []utils.Field{{Name: UnionUIDField, Type: utils.FieldNumber, Size: 10}})
	layer.Projection = WGS84PRJ
	for i, wkt := range wkts {
		layer.Features = append(layer.Features, &utils.Feature{Geom: mustWKT(t, wkt), Values: []any{i + 1}})
	}
	return layer
}

func countFlag(layer *utils.Layer, field string, value int) int {
	n := 0
	for _, f := range layer.Features {
		if v, ok := utils.AsInt(layer.Value(f, field)); ok && v == value {
			n++
		}
	}
	return n
}
