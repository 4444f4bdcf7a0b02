package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/ranking"
	"github.com/spigell/talent-matcher/internal/scoring"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidates for a job or jobs for a candidate and print them as JSON",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("job", "", "rank every candidate against this job")
	rankCmd.Flags().String("candidate", "", "rank every job for this candidate")
	rankCmd.Flags().IntP("limit", "n", 0, "maximum number of entries, 0 means all")
	rankCmd.Flags().Float64("min-score", -1, "drop entries below this overall score in [0,1]")
	rankCmd.MarkFlagsMutuallyExclusive("job", "candidate")
	rankCmd.MarkFlagsOneRequired("job", "candidate")
}

type rankedEntry struct {
	ID             string   `json:"id"`
	Overall        float64  `json:"overall_score"`
	Skill          float64  `json:"skill_score"`
	Experience     float64  `json:"experience_score"`
	Education      float64  `json:"education_score"`
	Location       float64  `json:"location_score"`
	MatchedSkills  []string `json:"matched_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Grade          string   `json:"grade"`
	Recommendation string   `json:"recommendation"`
}

func rank(cmd *cobra.Command) {
	ctx := context.Background()

	cfg, logger := setup()
	defer logger.Sync()

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}
	defer e.Close()

	opts := ranking.Options{}
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	if minScore, _ := cmd.Flags().GetFloat64("min-score"); minScore >= 0 {
		opts.MinScore = &minScore
	}

	jobID, _ := cmd.Flags().GetString("job")
	candidateID, _ := cmd.Flags().GetString("candidate")

	var entries []ranking.Entry
	if jobID != "" {
		entries, err = e.svc.RankPreview(ctx, jobID, opts)
	} else {
		entries, err = e.svc.RankJobsPreview(ctx, candidateID, opts)
	}
	if err != nil {
		logger.Fatal("ranking", zap.Error(err), zap.String("job", jobID), zap.String("candidate", candidateID))
	}

	if err := printRanking(cmd.OutOrStdout(), cfg.Weights, entries); err != nil {
		logger.Fatal("printing the ranking", zap.Error(err))
	}
}

func printRanking(w io.Writer, weights scoring.Weights, entries []ranking.Entry) error {
	out := make([]rankedEntry, 0, len(entries))
	for _, entry := range entries {
		b := entry.Breakdown.Rounded(weights)
		out = append(out, rankedEntry{
			ID:             entry.ID,
			Overall:        b.Overall,
			Skill:          b.Skill,
			Experience:     b.Experience,
			Education:      b.Education,
			Location:       b.Location,
			MatchedSkills:  b.MatchedSkills,
			MissingSkills:  b.MissingSkills,
			Grade:          scoring.Grade(b.Overall),
			Recommendation: scoring.Recommendation(b.Overall),
		})
	}
	return printJSON(w, out)
}

func printJSON(w io.Writer, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}
