package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bsaid97/go-boundary-prep/handlers"
	"github.com/bsaid97/go-boundary-prep/utils"
)

func newEliminateCmd(a *app) *cobra.Command {
	mode := string(handlers.EliminateByLength)

	cmd := &cobra.Command{
		Use:   "eliminate <union.shp> <max_area>",
		Short: "Merge small gaps and overlaps into their neighbours",
		Long: `Merge the flagged gap and overlap polygons smaller than max_area square
kilometres into a neighbouring polygon. The result is written next to the
input as <name>_elim.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := utils.LoggerFromContext(ctx)

			maxArea, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return utils.WrapError(utils.ErrCodeInvalidInput, err, "max_area must be a number, got %q", args[1])
			}
			m, err := handlers.ParseEliminateMode(mode)
			if err != nil {
				return err
			}
			if !utils.Exists(args[0]) {
				return utils.NewError(utils.ErrCodeFileNotFound, "Cannot find input feature class %s", args[0])
			}
			layer, err := utils.ReadLayer(args[0])
			if err != nil {
				return err
			}

			sw := utils.NewStopwatch(logger)
			result, err := handlers.Eliminate(ctx, layer, maxArea, m, a.processor(ctx))
			if err != nil {
				return err
			}
			sw.Done("Eliminate complete")

			report := utils.NewRunReport("eliminate", args[0])
			report.ISO = isoOf(layer.Name)
			report.Output = result.Layer.Path
			report.Features = result.Layer.Count()
			report.Stats = map[string]float64{
				"max_area": maxArea,
				"selected": float64(result.Selected),
				"merged":   float64(result.Merged),
				"kept":     float64(result.Kept),
			}
			a.record(ctx, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", mode, "neighbour to merge into: length (longest shared border) or area (largest)")
	return cmd
}

// isoOf returns the ISO prefix of an ingest dataset name.
func isoOf(name string) string {
	if len(name) > 3 {
		return name[:3]
	}
	return name
}
