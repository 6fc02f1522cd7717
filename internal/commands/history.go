package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/history"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/render"
)

const maxTitleWidth = 40

func newHistoryCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage conversation history",
		Long: `View and manage your local conversation history.

` + history.ListAliases(),
	}

	cmd.AddCommand(
		newHistoryListCmd(deps),
		newHistorySearchCmd(deps),
		newHistoryShowCmd(deps),
		newHistoryExportCmd(deps),
		newHistoryDeleteCmd(deps),
		newHistoryClearCmd(deps),
		newHistoryRenameCmd(deps),
		newHistoryPinCmd(deps, true),
		newHistoryPinCmd(deps, false),
	)
	return cmd
}

func openStore(deps *Dependencies) (*history.Store, error) {
	store, err := deps.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// resolveRef opens the store and resolves a conversation reference
func resolveRef(deps *Dependencies, ref string) (*history.Store, *history.Conversation, error) {
	store, err := openStore(deps)
	if err != nil {
		return nil, nil, err
	}
	conv, err := history.NewResolver(store).ResolveWithInfo(ref)
	if err != nil {
		return nil, nil, err
	}
	return store, conv, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func newHistoryListCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(deps)
			if err != nil {
				return err
			}

			conversations, err := store.ListConversations()
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(conversations) == 0 {
				fmt.Fprintln(out, "No conversations found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tMESSAGES\tUPDATED")
			for i, conv := range conversations {
				title := truncate(conv.Title, maxTitleWidth)
				if pinned, _ := store.IsPinned(conv.ID); pinned {
					title = "★ " + title
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					i+1, history.ShortID(conv.ID), title, len(conv.Messages),
					history.FormatRelativeTime(conv.UpdatedAt))
			}
			return w.Flush()
		},
	}
}

func newHistorySearchCmd(deps *Dependencies) *cobra.Command {
	var content bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversation titles, and with --content messages and sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(deps)
			if err != nil {
				return err
			}

			results, err := store.SearchConversations(args[0], content)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "No conversations match %q.\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTITLE\tFIELD\tMATCH")
			for _, r := range results {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					history.ShortID(r.Conversation.ID), truncate(r.Conversation.Title, maxTitleWidth),
					r.MatchField, r.MatchSnippet)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&content, "content", false, "Also search message content and sources")
	return cmd
}

func newHistoryShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conv, err := resolveRef(deps, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %s\n", conv.ID)
			fmt.Fprintf(out, "Title: %s\n", conv.Title)
			if conv.BaseURL != "" {
				fmt.Fprintf(out, "Service: %s\n", conv.BaseURL)
			}
			fmt.Fprintf(out, "Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Updated: %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Messages: %d\n\n", len(conv.Messages))

			decorated := isTerminal(out)
			width := terminalWidth(out) - 4
			for i, msg := range conv.Messages {
				fmt.Fprintf(out, "[%d] %s (%s):\n", i+1, msg.Role.Label(), msg.Timestamp.Format("15:04"))
				printStoredMessage(out, msg, decorated, width)
			}
			return nil
		},
	}
}

func printStoredMessage(out io.Writer, msg models.Message, decorated bool, width int) {
	if decorated {
		rendered, err := render.Answer(msg, render.DefaultOptions().WithWidth(width))
		if err == nil {
			fmt.Fprintln(out, rendered)
			fmt.Fprintln(out, messageFooter(msg))
			return
		}
	}

	fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(msg.Content, "\n", "\n  "))
	if msg.IsAssistant() {
		if legend := plainLegend(msg.Content, msg.Sources); legend != "" {
			fmt.Fprint(out, indent(legend))
		}
	}
	fmt.Fprintln(out, messageFooter(msg))
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

// messageFooter shows the run id and rating of an answer
func messageFooter(msg models.Message) string {
	var parts []string
	if msg.RunID != "" {
		parts = append(parts, "run_id: "+msg.RunID)
	}
	if fb := msg.Feedback; fb != nil {
		rating := "👎"
		if fb.Score == models.ScorePositive {
			rating = "👍"
		}
		if fb.Comment != "" {
			rating += " " + fb.Comment
		}
		parts = append(parts, "feedback: "+rating)
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, "  ") + "\n"
}

func newHistoryExportCmd(deps *Dependencies) *cobra.Command {
	var (
		output    string
		format    string
		metadata  bool
		noSources bool
	)

	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a conversation as markdown, json or html",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, conv, err := resolveRef(deps, args[0])
			if err != nil {
				return err
			}

			opts := history.DefaultExportOptions()
			opts.IncludeMetadata = metadata
			opts.IncludeSources = !noSources

			switch {
			case format != "":
				opts.Format, err = history.ParseExportFormat(format)
			case output != "" && filepath.Ext(output) != "":
				opts.Format, err = history.ParseExportFormat(filepath.Ext(output))
			}
			if err != nil {
				return err
			}

			data, err := store.Export(conv.ID, opts)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %q to %s\n", conv.Title, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file (format taken from the extension)")
	cmd.Flags().StringVar(&format, "format", "", "markdown, json or html")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "Include run ids and feedback")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "Leave out source legends")
	return cmd
}

func newHistoryDeleteCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ref>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, conv, err := resolveRef(deps, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteConversation(conv.ID); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation: %s\n", conv.Title)
			return nil
		},
	}
}

func newHistoryClearCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(deps)
			if err != nil {
				return err
			}
			if err := store.ClearAll(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All conversations deleted.")
			return nil
		},
	}
}

func newHistoryRenameCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <ref> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[1])
			if title == "" {
				return fmt.Errorf("title cannot be empty")
			}
			store, conv, err := resolveRef(deps, args[0])
			if err != nil {
				return err
			}
			if err := store.UpdateTitle(conv.ID, title); err != nil {
				return fmt.Errorf("failed to rename: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", history.ShortID(conv.ID), title)
			return nil
		},
	}
}

func newHistoryPinCmd(deps *Dependencies, pin bool) *cobra.Command {
	use, short, done := "pin <ref>", "Keep a conversation at the top of the list", "Pinned"
	if !pin {
		use, short, done = "unpin <ref>", "Remove a pin", "Unpinned"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, conv, err := resolveRef(deps, args[0])
			if err != nil {
				return err
			}
			if err := store.SetPinned(conv.ID, pin); err != nil {
				return fmt.Errorf("failed to update pin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", done, conv.Title)
			return nil
		},
	}
}
