package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-boundary-prep/utils"
)

func statsLayer() *utils.Layer {
	layer := utils.NewLayer("abc_ingest_union", []utils.Field{
		areaFieldDef,
		flagField(GapsField),
		flagField(OverlapsField),
	})
	rows := [][]any{
		{10.0, 0, 0},
		{20.0, 0, FlagCentral},
		{1.0, FlagGap, 0},
		{3.0, FlagGap, 0},
		{2.0, 0, FlagOverlap},
		{4.0, 0, FlagOverlap},
	}
	for _, r := range rows {
		layer.Features = append(layer.Features, &utils.Feature{Values: r})
	}
	return layer
}

func TestGapOverlapStats(t *testing.T) {
	stats, err := GapOverlapStats(statsLayer(), []string{GapsField, OverlapsField})
	require.NoError(t, err)

	want := []Stat{
		{RegularAreaStat, 15},
		{"gaps max area", 3},
		{"gaps mean area", 2},
		{"overlaps max area", 4},
		{"overlaps mean area", 3},
	}
	require.Len(t, stats, len(want))
	for i, w := range want {
		assert.Equal(t, w.Key, stats[i].Key)
		assert.InDelta(t, w.Value, stats[i].Value, 1e-9, w.Key)
	}
}

func TestGapOverlapStatsSingleFlag(t *testing.T) {
	stats, err := GapOverlapStats(statsLayer(), []string{GapsField})
	require.NoError(t, err)
	require.Len(t, stats, 3)
	// Overlaps count as regular units when only gaps are looked at.
	assert.InDelta(t, 9.0, stats[0].Value, 1e-9)
}

func TestGapOverlapStatsMissingFields(t *testing.T) {
	_, err := GapOverlapStats(utils.NewLayer("x", nil), []string{GapsField})
	assert.True(t, utils.IsCode(err, utils.ErrCodeMissingField))

	layer := utils.NewLayer("x", []utils.Field{areaFieldDef})
	_, err = GapOverlapStats(layer, []string{OverlapsField})
	assert.True(t, utils.IsCode(err, utils.ErrCodeMissingField))
}

func TestFormatArea(t *testing.T) {
	assert.Equal(t, "0.0000", FormatArea(0))
	assert.Equal(t, "12.3457", FormatArea(12.34567))
	assert.Equal(t, "1,234,567.8910", FormatArea(1234567.891))
}

func TestLogStats(t *testing.T) {
	ctx, logs := testContext(t)
	LogStats(ctx, []Stat{{"gaps max area", 1234.5}})
	assert.Contains(t, logs.String(), "gaps max area: 1,234.5000 square km")
}
