package main

import (
	"github.com/spf13/cobra"

	"github.com/bsaid97/go-boundary-prep/handlers"
	"github.com/bsaid97/go-boundary-prep/utils"
)

func newCheckCmd(a *app) *cobra.Command {
	var checkISO bool

	cmd := &cobra.Command{
		Use:   "check <input.shp> <iso> <out_folder>",
		Short: "Validate a boundary layer and flag its gaps and overlaps",
		Long: `Check field names, geometry and projection of the input, copy it to the
<iso>_ingest workspace in out_folder and union the copy with itself. The
union is written as <iso>_ingest_union with gaps and overlaps flagged.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := utils.LoggerFromContext(ctx)
			sw := utils.NewStopwatch(logger)

			result, err := handlers.RunCheck(ctx, handlers.CheckOptions{
				Input:             args[0],
				ISO:               args[1],
				OutFolder:         args[2],
				CheckISO:          checkISO,
				ReservedWordsFile: a.cfg.ReservedWordsFile,
				ISOOverrides:      a.cfg.ISOOverrides,
				Precision:         a.cfg.Precision,
				Processor:         a.processor(ctx),
			})
			if err != nil {
				return err
			}
			sw.Done("Check complete")

			report := utils.NewRunReport("check", args[0])
			report.ISO = result.ISO
			report.Output = result.Union.Layer.Path
			report.Features = result.Copy.Count()
			report.Gaps = result.Union.Gaps
			report.Overlaps = result.Union.Overlaps
			report.Repaired = result.Repaired > 0 || result.Deleted > 0
			if len(result.Stats) > 0 {
				report.Stats = make(map[string]float64, len(result.Stats))
				for _, s := range result.Stats {
					report.Stats[s.Key] = s.Value
				}
			}
			if result.Reprojected {
				report.Warnings = append(report.Warnings, "reprojected to WGS84")
			}
			if len(result.Renames) > 0 {
				report.Warnings = append(report.Warnings, "fields renamed")
			}
			a.record(ctx, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkISO, "check-iso", false, "replace unsupported ISO codes and check the code is known")
	return cmd
}
