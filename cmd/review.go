package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/matching"
	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/scheduler"
)

const (
	PromptBack    = "back"
	PromptExit    = "exit"
	PromptExplain = "explain"
)

var errExit = errors.New("exit requested")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Walk through the ranked candidates of a job and record feedback",
	Run: func(cmd *cobra.Command, _ []string) {
		review(cmd)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().String("job", "", "job to review")
	reviewCmd.Flags().IntP("limit", "n", 20, "number of candidates to show")
	reviewCmd.Flags().Bool("contactable", false, "show only candidates that allow contact")
	reviewCmd.Flags().Duration("settle-timeout", 30*time.Second, "how long to wait for matches to be computed")
	reviewCmd.MarkFlagRequired("job")
}

func review(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger := setup()
	defer logger.Sync()

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}
	defer e.Close()

	jobID, _ := cmd.Flags().GetString("job")
	limit, _ := cmd.Flags().GetInt("limit")
	contactable, _ := cmd.Flags().GetBool("contactable")
	settle, _ := cmd.Flags().GetDuration("settle-timeout")

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- e.svc.Start(runCtx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			logger.Error("engine stopped", zap.Error(err))
		}
	}()

	if err := e.svc.SubmitEvent(scheduler.EventJob, jobID); err != nil {
		logger.Fatal("scheduling the job", zap.Error(err))
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, settle)
	err = e.svc.WaitIdle(waitCtx)
	waitCancel()
	if err != nil {
		logger.Warn("matches are still being computed, showing what is ready", zap.Error(err))
	}

	for {
		recs, err := e.svc.RankCandidatesForJob(ctx, jobID, matching.Query{Limit: limit, RequireContact: contactable})
		if err != nil {
			logger.Fatal("ranking candidates", zap.Error(err))
		}

		logger.Info("current list of candidates", zap.String("job", jobID), zap.Int("count", len(recs)))
		if len(recs) == 0 {
			logger.Info("exiting", zap.String("reason", "no candidates to review"))
			return
		}

		if err := reviewOnce(ctx, e.svc, logger, recs); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// reviewOnce lets the user pick a candidate and set the status of the match.
func reviewOnce(ctx context.Context, svc *matching.Service, logger *zap.Logger, recs []*records.MatchRecord) error {
	items := make([]string, 0, len(recs)+1)
	for _, rec := range recs {
		items = append(items, fmt.Sprintf("%s %.2f %s [%s] matched: %s",
			rec.CandidateID, rec.Overall, rec.Grade, rec.Status, strings.Join(rec.MatchedSkills, ", "),
		))
	}

	candidatePrompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: append(items, PromptExit),
		Size:  10,
	}

	_, selected, err := candidatePrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptExit {
		return errExit
	}

	candidateID := strings.Split(selected, " ")[0]
	jobID := recs[0].JobID

	for {
		actions := []string{
			string(records.StatusViewed),
			string(records.StatusInterested),
			string(records.StatusNotInterested),
			string(records.StatusContacted),
			PromptExplain,
		}

		statusPrompt := promptui.Select{
			Label: fmt.Sprintf("Set status for %s", candidateID),
			Items: append(actions, PromptBack),
		}

		_, action, err := statusPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptBack:
			return nil
		case PromptExplain:
			insight, _, err := svc.Explain(ctx, candidateID, jobID)
			if err != nil {
				logger.Warn("explaining the match", zap.Error(err))
				continue
			}
			logger.Info(insight.Summary,
				zap.Strings("strengths", insight.Strengths),
				zap.Strings("gaps", insight.Gaps),
			)
		default:
			status, err := records.ParseStatus(action)
			if err != nil {
				return err
			}
			rec, err := svc.SetStatus(ctx, candidateID, jobID, status)
			if err != nil {
				return err
			}
			logger.Info("match status updated",
				zap.String("candidate", rec.CandidateID),
				zap.String("job", rec.JobID),
				zap.String("status", string(rec.Status)),
			)
			return nil
		}
	}
}
