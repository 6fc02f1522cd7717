package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/api"
	"github.com/diogo/streamchat/internal/citation"
	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/markdown"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/render"
	"github.com/diogo/streamchat/internal/session"
)

// queryOptions are the root command flags for a one-shot question
type queryOptions struct {
	file   string
	output string
	raw    bool
	copy   bool
	noSave bool
}

// readPrompt takes the prompt from --file, the argument or piped stdin,
// in that order
func readPrompt(cmd *cobra.Command, args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}

	in := cmd.InOrStdin()
	if isTerminal(in) {
		return "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// runQuery sends one question and streams the answer. On a terminal the
// answer is rendered once complete; otherwise tokens are written as they
// arrive. SIGINT cancels the stream.
func runQuery(cmd *cobra.Command, deps *Dependencies, cfg config.Config, prompt string, opts *queryOptions) error {
	logger := logging.With("query")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := deps.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	thread := session.New(api.NewChatSession(client), session.WithFeedbackKey(cfg.FeedbackKey))

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	decorated := !opts.raw && opts.output == "" && isTerminal(out)

	var spin *spinner
	if decorated {
		spin = newSpinner(errOut, "Waiting for answer")
		spin.start()
	}

	printed := 0
	answer, err := thread.Send(ctx, prompt, func(msg models.Message) {
		switch {
		case decorated:
			spin.setMessage(fmt.Sprintf("Streaming answer (%d chars)", len(msg.Content)))
		case opts.output == "":
			// Content only grows, so the new suffix is the delta
			if len(msg.Content) > printed {
				fmt.Fprint(out, msg.Content[printed:])
				printed = len(msg.Content)
			}
		}
	})
	if err != nil {
		if spin != nil {
			spin.stopWithError()
		}
		if ctx.Err() != nil {
			return fmt.Errorf("query cancelled: %w", context.Cause(ctx))
		}
		return fmt.Errorf("query failed: %w", err)
	}
	logger.Info("query answered", "run_id", answer.RunID, "chars", len(answer.Content), "sources", len(answer.Sources))

	switch {
	case opts.output != "":
		if err := writeAnswerFile(opts.output, answer); err != nil {
			return err
		}
		fmt.Fprintln(errOut, successStyle.Render("✓ Answer saved to "+opts.output))
	case decorated:
		spin.stopWithSuccess("Done")
		printDecorated(out, cfg, answer)
	default:
		if printed > 0 && !strings.HasSuffix(answer.Content, "\n") {
			fmt.Fprintln(out)
		}
		if legend := plainLegend(answer.Content, answer.Sources); legend != "" {
			fmt.Fprint(out, "\n"+legend)
		}
	}

	if answer.RunID != "" {
		fmt.Fprintln(errOut, dimStyle.Render("run_id: "+answer.RunID))
	}

	if opts.copy || cfg.CopyToClipboard {
		if err := deps.Clipboard(clipboardText(answer)); err != nil {
			fmt.Fprintln(errOut, warnStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		} else {
			fmt.Fprintln(errOut, successStyle.Render("✓ Copied to clipboard"))
		}
	}

	if !opts.noSave {
		saveThread(deps, cfg, thread, errOut)
	}
	return nil
}

func printDecorated(out io.Writer, cfg config.Config, answer models.Message) {
	bubbleWidth := min(max(terminalWidth(out)-4, 40), 120)
	contentWidth := bubbleWidth - 4

	rendered, err := render.Answer(answer, render.OptionsFromConfig(cfg, contentWidth))
	if err != nil {
		rendered = answer.Content
	}

	fmt.Fprintln(out, assistantLabelStyle.Render("✦ Assistant"))
	fmt.Fprintln(out, assistantBubbleStyle.Width(bubbleWidth).Render(rendered))
}

// writeAnswerFile stores the answer as markdown with its source legend
func writeAnswerFile(path string, answer models.Message) error {
	content := answer.Content
	if len(answer.Sources) > 0 {
		set := citation.New(answer.Sources)
		content = set.Markdown(content)
		if legend := set.Legend(); legend != "" {
			content = strings.TrimRight(content, "\n") + "\n\n" + legend
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// clipboardText is the answer with markdown syntax stripped, taken from
// the rendered HTML when the stream produced it
func clipboardText(answer models.Message) string {
	if answer.HTML == "" {
		return answer.Content
	}
	return markdown.PlainText(answer.HTML)
}

// plainLegend lists de-duplicated sources without markup. Sources cited
// in content come first, in order of first reference.
func plainLegend(content string, sources []models.Source) string {
	if len(sources) == 0 {
		return ""
	}
	set := citation.New(sources)
	order := set.Cited(content)
	listed := make(map[int]bool, len(set.Sources))
	for _, i := range order {
		listed[i] = true
	}
	for i := range set.Sources {
		if !listed[i] {
			order = append(order, i)
		}
	}

	var sb strings.Builder
	sb.WriteString("Sources:\n")
	for _, i := range order {
		src := set.Sources[i]
		if src.Title != "" && src.Title != src.URL {
			fmt.Fprintf(&sb, "  [%d] %s <%s>\n", i, src.Title, src.URL)
		} else {
			fmt.Fprintf(&sb, "  [%d] %s\n", i, src.URL)
		}
	}
	return sb.String()
}

// saveThread stores the exchange; history is best effort
func saveThread(deps *Dependencies, cfg config.Config, thread *session.Thread, errOut io.Writer) {
	if deps.OpenStore == nil {
		return
	}
	store, err := deps.OpenStore()
	if err == nil {
		err = store.SaveMessages(thread.ConversationID(), cfg.BaseURL, thread.Messages())
	}
	if err != nil {
		logging.With("query").Warn("history not saved", "error", err)
		fmt.Fprintln(errOut, warnStyle.Render(fmt.Sprintf("⚠ History not saved: %v", err)))
	}
}
