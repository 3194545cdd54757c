package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bsaid97/go-boundary-prep/config"
	"github.com/bsaid97/go-boundary-prep/utils"
)

var (
	version = "dev"
	commit  string
	date    string
)

// app holds what the subcommands share once the root has run.
type app struct {
	configPath string
	verbose    bool

	stderr io.Writer
	cfg    *config.Config
	ledger utils.Ledger
}

// execute runs root and disconnects the run ledger whether or not the
// command succeeded.
func execute(ctx context.Context, root *cobra.Command, a *app) error {
	err := root.ExecuteContext(ctx)
	if cerr := a.ledger.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
		err = utils.WrapError(utils.ErrCodeInternal, cerr, "failed to close run ledger")
	}
	return err
}

func newRootCmd(stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stderr: stderr, ledger: utils.NopLedger{}}

	root := &cobra.Command{
		Use:           "boundary-prep",
		Short:         "Prepare administrative boundary layers for ingest",
		Long:          `boundary-prep checks an input boundary layer, finds gaps and overlaps between its polygons, eliminates the small ones and sets up a review project for the rest.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if a.verbose {
				level = log.DebugLevel
			}
			logger := utils.NewLogger(a.stderr, level)
			ctx := utils.WithLogger(cmd.Context(), logger)
			cmd.SetContext(ctx)

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.openLedger(ctx)
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("boundary-prep %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvConfigFile+" or ./"+config.DefaultConfigFile+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newEliminateCmd(a))
	root.AddCommand(newCheckOutputCmd(a))
	root.AddCommand(newReviewCmd(a))
	return root, a
}

// openLedger connects the run ledger when one is configured. A ledger that
// cannot be reached is logged and replaced by a no-op.
func (a *app) openLedger(ctx context.Context) {
	if !a.cfg.Ledger.Enabled() {
		return
	}
	logger := utils.LoggerFromContext(ctx)
	ledger, err := utils.NewMongoLedger(ctx, a.cfg.Ledger.MongoURI, a.cfg.Ledger.Database, a.cfg.Ledger.Collection)
	if err != nil {
		logger.Warn("Run ledger unavailable, runs will not be recorded.", "err", err)
		return
	}
	logger.Debug("recording runs", "database", a.cfg.Ledger.Database, "collection", a.cfg.Ledger.Collection)
	a.ledger = ledger
}

// record stores report in the ledger; failures only warn.
func (a *app) record(ctx context.Context, report *utils.RunReport) {
	if err := a.ledger.Record(ctx, report); err != nil {
		utils.LoggerFromContext(ctx).Warn("Failed to record run.", "id", report.ID, "err", err)
	}
}

// processor returns the worker pool for geometry batches. The spinner is
// only drawn on a terminal.
func (a *app) processor(ctx context.Context) *utils.ParallelProcessor {
	pp := utils.NewParallelProcessor(a.cfg.Workers)
	pp.Progress = &utils.ProgressReporter{
		Logger: utils.LoggerFromContext(ctx),
		Every:  100,
	}
	if f, ok := a.stderr.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		pp.Progress.Out = f
	}
	return pp
}
