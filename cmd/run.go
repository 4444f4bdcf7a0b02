package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the matching engine until interrupted",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-backfill", false, "do not schedule every published job on start")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger := setup()
	defer logger.Sync()

	logger.Info("starting the talent-matcher", zap.String("version", version))
	logger.Debug("starting with config", zap.Stringer("config", cfg))

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}
	defer e.Close()

	done := make(chan error, 1)
	go func() { done <- e.svc.Start(ctx) }()

	if noBackfill, _ := cmd.Flags().GetBool("no-backfill"); !noBackfill {
		submitted, err := e.svc.Backfill(ctx)
		if err != nil {
			logger.Error("backfilling published jobs", zap.Error(err))
		}
		logger.Info("published jobs scheduled", zap.Int("count", submitted))
	}

	if err := <-done; err != nil {
		logger.Error("engine stopped", zap.Error(err))
		return
	}

	st := e.svc.Stats()
	logger.Info("engine stopped",
		zap.Int("matches", st.Matches),
		zap.Uint64("processed", st.Scheduler.Processed),
		zap.Int("failed", st.Scheduler.Failed),
	)
}
