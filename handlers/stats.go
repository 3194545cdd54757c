package handlers

import (
	"context"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bsaid97/go-boundary-prep/utils"
)

var areaPrinter = message.NewPrinter(language.English)

// RegularAreaStat is the key of the mean area of records that are neither
// gaps nor overlaps.
const RegularAreaStat = "average unit area excluding gaps and overlaps"

// Stat is one named statistic in square kilometres.
type Stat struct {
	Key   string
	Value float64
}

// GapOverlapStats summarises AREA_SQKM by flag. flags lists the flag
// fields to look at, in report order; records flagged 1 in any of them are
// collected per flag, all others are regular units.
func GapOverlapStats(union *utils.Layer, flags []string) ([]Stat, error) {
	if !union.HasField(AreaField) {
		return nil, utils.NewError(utils.ErrCodeMissingField, "field %s is required and cannot be found in %s", AreaField, union.Name)
	}
	for _, flag := range flags {
		if !union.HasField(flag) {
			return nil, utils.NewError(utils.ErrCodeMissingField, "field %s cannot be found in %s", flag, union.Name)
		}
	}

	areas := make(map[string][]float64)
	var regular []float64
	for _, f := range union.Features {
		area, _ := utils.AsFloat(union.Value(f, AreaField))
		flagged := false
		for _, flag := range flags {
			if v, ok := utils.AsInt(union.Value(f, flag)); ok && v == 1 {
				areas[flag] = append(areas[flag], area)
				flagged = true
			}
		}
		if !flagged {
			regular = append(regular, area)
		}
	}

	stats := []Stat{{Key: RegularAreaStat, Value: mean(regular)}}
	for _, flag := range flags {
		values := areas[flag]
		if len(values) == 0 {
			continue
		}
		stats = append(stats,
			Stat{Key: flag + " max area", Value: maxOf(values)},
			Stat{Key: flag + " mean area", Value: mean(values)},
		)
	}
	return stats, nil
}

// LogStats prints stats as "key: value square km".
func LogStats(ctx context.Context, stats []Stat) {
	logger := utils.LoggerFromContext(ctx)
	logger.Info("Overlap and Gap statistics:")
	for _, s := range stats {
		logger.Infof("%s: %s square km", s.Key, FormatArea(s.Value))
	}
}

// FormatArea formats v with four decimals and thousands separators.
func FormatArea(v float64) string {
	return areaPrinter.Sprintf("%.4f", v)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}
