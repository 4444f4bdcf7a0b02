package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/ai"
	"github.com/spigell/talent-matcher/internal/matching"
	"github.com/spigell/talent-matcher/internal/records"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Ask the AI explainer to narrate a candidate/job match",
	Run: func(cmd *cobra.Command, _ []string) {
		explain(cmd)
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().String("candidate", "", "candidate id")
	explainCmd.Flags().String("job", "", "job id")
	explainCmd.MarkFlagRequired("candidate")
	explainCmd.MarkFlagRequired("job")
}

type explanation struct {
	Match   *records.MatchRecord `json:"match"`
	Insight *ai.Insight          `json:"insight"`
}

func explain(cmd *cobra.Command) {
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

	insight, rec, err := e.svc.Explain(ctx, candidateID, jobID)
	if errors.Is(err, matching.ErrExplainerDisabled) {
		logger.Fatal("explaining",
			zap.Error(err),
			zap.String("hint", "set ai.enabled and ai.gemini.api-key-file in the configuration file"),
		)
	}
	if err != nil {
		logger.Fatal("explaining", zap.Error(err), zap.String("candidate", candidateID), zap.String("job", jobID))
	}

	if err := printJSON(cmd.OutOrStdout(), explanation{Match: rec, Insight: insight}); err != nil {
		logger.Fatal("printing the explanation", zap.Error(err))
	}
}
