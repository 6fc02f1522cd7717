package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/api"
	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/history"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/models"
)

// parseScore accepts 1/0 and a few spelled-out forms
func parseScore(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "+", "+1", "up", "good", "positive", "yes":
		return models.ScorePositive, nil
	case "0", "-", "-1", "down", "bad", "negative", "no":
		return models.ScoreNegative, nil
	}
	return 0, fmt.Errorf("invalid score %q (use up/1 or down/0)", s)
}

func newFeedbackCmd(deps *Dependencies, root *rootOptions) *cobra.Command {
	var (
		score      string
		comment    string
		feedbackID string
		key        string
	)

	cmd := &cobra.Command{
		Use:   "feedback <run-id>",
		Short: "Rate an answer by its run id",
		Long: `Send a score for the answer produced by a run.

Each answer accepts one rating. To add or change the comment of an existing
rating, pass the feedback id printed when it was recorded:

  streamchat feedback <run-id> --score down --comment "outdated source"
  streamchat feedback <run-id> --feedback-id <id> --comment "fixed link"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config(deps)
			runID := strings.TrimSpace(args[0])
			if runID == "" {
				return apierrors.ErrNoRunID
			}

			// The stored answer, when history has it, carries the earlier rating
			var (
				store  *history.Store
				conv   *history.Conversation
				stored models.Message
				found  bool
			)
			if deps.OpenStore != nil {
				if s, err := deps.OpenStore(); err == nil {
					store = s
					if c, m, err := s.FindByRunID(runID); err == nil {
						conv, stored, found = c, m, true
					}
				}
			}

			amend := feedbackID != ""
			if !amend && found && stored.Feedback != nil {
				return fmt.Errorf("%w (amend it with --feedback-id %s)", apierrors.ErrFeedbackExists, stored.Feedback.FeedbackID)
			}

			var value int
			switch {
			case score != "":
				v, err := parseScore(score)
				if err != nil {
					return err
				}
				value = v
			case amend && found && stored.Feedback != nil:
				value = stored.Feedback.Score
			default:
				return fmt.Errorf("--score is required")
			}

			if key == "" {
				key = cfg.FeedbackKey
			}
			// An amend that only changes the score keeps the earlier comment
			if amend && found && stored.Feedback != nil && !cmd.Flags().Changed("comment") {
				comment = stored.Feedback.Comment
			}
			fb := models.Feedback{
				Score:      value,
				Key:        key,
				RunID:      runID,
				FeedbackID: feedbackID,
				Comment:    comment,
			}

			client, err := deps.NewClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			defer client.Close()

			if amend {
				err = client.UpdateFeedback(cmd.Context(), api.NewFeedbackRequest(fb))
			} else {
				fb.FeedbackID = uuid.NewString()
				err = client.SubmitFeedback(cmd.Context(), api.NewFeedbackRequest(fb))
			}
			if err != nil {
				return fmt.Errorf("feedback failed: %w", err)
			}

			verb := "recorded"
			if amend {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Feedback %s (id %s)\n", verb, fb.FeedbackID)
			logging.With("feedback").Info("feedback sent", "run_id", runID, "score", value, "amend", amend)

			if found {
				stored.Feedback = &fb
				if err := store.UpdateMessage(conv.ID, stored); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("⚠ History not updated: %v", err)))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&score, "score", "s", "", "Score: up/1 or down/0")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Optional comment")
	cmd.Flags().StringVar(&feedbackID, "feedback-id", "", "Amend an existing rating instead of creating one")
	cmd.Flags().StringVar(&key, "key", "", "Feedback key (default from config)")

	return cmd
}
