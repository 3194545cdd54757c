package main

import (
	"github.com/spf13/cobra"

	"github.com/bsaid97/go-boundary-prep/handlers"
	"github.com/bsaid97/go-boundary-prep/utils"
)

func newCheckOutputCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-output <updated.shp> <original.shp>",
		Short: "Compare an edited layer against the original",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := utils.ReadLayer(args[0])
			if err != nil {
				return err
			}
			original, err := utils.ReadLayer(args[1])
			if err != nil {
				return err
			}
			handlers.CompareLayers(cmd.Context(), updated, original)
			return nil
		},
	}
}
