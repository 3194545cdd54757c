package handlers

import (
	"context"
	"sort"
	"strings"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// Comparison is the outcome of CompareLayers.
type Comparison struct {
	MissingFields []string
	OriginalCount int
	UpdatedCount  int
}

// CountsMatch reports whether both layers have the same number of features.
func (c *Comparison) CountsMatch() bool {
	return c.OriginalCount == c.UpdatedCount
}

// CompareLayers checks an updated layer (eliminate output or manual edit)
// against the original: fields of the original missing from the update,
// except the gaps and overlaps flags, and feature counts.
func CompareLayers(ctx context.Context, updated, original *utils.Layer) *Comparison {
	logger := utils.LoggerFromContext(ctx)
	c := &Comparison{
		OriginalCount: original.Count(),
		UpdatedCount:  updated.Count(),
	}

	for _, name := range original.FieldNames() {
		if strings.EqualFold(name, GapsField) || strings.EqualFold(name, OverlapsField) {
			continue
		}
		if !updated.HasField(name) {
			c.MissingFields = append(c.MissingFields, name)
		}
	}
	sort.Strings(c.MissingFields)

	if len(c.MissingFields) > 0 {
		logger.Warn("Missing fields in output feature class: ")
		logger.Warnf("%v", c.MissingFields)
	} else {
		logger.Info("Input and output fields match.")
	}

	switch {
	case c.CountsMatch():
		logger.Infof("Feature counts match, %d polygons in original, %d in updated", c.OriginalCount, c.UpdatedCount)
	case c.OriginalCount > c.UpdatedCount:
		logger.Warnf("Feature count mismatch! The original feature class has %d more polygons than the updated.",
			c.OriginalCount-c.UpdatedCount)
	default:
		logger.Warnf("Feature count mismatch! The updated feature class has %d more polygons than the original.",
			c.UpdatedCount-c.OriginalCount)
	}
	return c
}
