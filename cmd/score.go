package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one candidate against one job and print the breakdown",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("candidate", "", "candidate id")
	scoreCmd.Flags().String("job", "", "job id")
	scoreCmd.MarkFlagRequired("candidate")
	scoreCmd.MarkFlagRequired("job")
}

func score(cmd *cobra.Command) {
	ctx := context.Background()

	cfg, logger := setup()
	defer logger.Sync()

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}
	defer e.Close()

	candidateID, _ := cmd.Flags().GetString("candidate")
	jobID, _ := cmd.Flags().GetString("job")

	rec, err := e.svc.Preview(ctx, candidateID, jobID)
	if err != nil {
		logger.Fatal("scoring", zap.Error(err), zap.String("candidate", candidateID), zap.String("job", jobID))
	}

	if err := printJSON(cmd.OutOrStdout(), rec); err != nil {
		logger.Fatal("printing the score", zap.Error(err))
	}
}
