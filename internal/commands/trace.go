package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apierrors "github.com/diogo/streamchat/internal/errors"
)

func newTraceCmd(deps *Dependencies, root *rootOptions) *cobra.Command {
	var copyURL bool

	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Print the trace URL of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config(deps)
			runID := strings.TrimSpace(args[0])

			client, err := deps.NewClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			defer client.Close()

			url, err := client.Trace(cmd.Context(), runID)
			if err != nil {
				if errors.Is(err, apierrors.ErrNoChatSession) {
					return fmt.Errorf("no trace for run %s: %w", runID, err)
				}
				return fmt.Errorf("trace failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), url)

			if copyURL || cfg.CopyToClipboard {
				if err := deps.Clipboard(url); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓ Copied to clipboard"))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&copyURL, "copy", "c", false, "Copy the URL to the clipboard")
	return cmd
}
