package main

import (
	"github.com/spf13/cobra"

	"github.com/bsaid97/go-boundary-prep/handlers"
)

func newReviewCmd(a *app) *cobra.Command {
	var (
		template  string
		output    string
		noGeoJSON bool
	)

	cmd := &cobra.Command{
		Use:   "review <union.shp>",
		Short: "Set up a review project for a flagged union",
		Long: `Build a review project from the template with its gaps, overlaps and
union layers pointing at the given dataset. The flagged polygons are also
exported as GeoJSON unless --no-geojson is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if template == "" {
				template = a.cfg.ReviewTemplate
			}
			_, err := handlers.SetupProject(cmd.Context(), args[0], handlers.ReviewOptions{
				Template: template,
				Output:   output,
				GeoJSON:  !noGeoJSON,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&template, "template", "", "review project template (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "project file (default <workspace>/<iso>_review.toml)")
	cmd.Flags().BoolVar(&noGeoJSON, "no-geojson", false, "skip the GeoJSON export of flagged polygons")
	return cmd
}
