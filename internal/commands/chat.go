package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/api"
	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/history"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/render"
	"github.com/diogo/streamchat/internal/session"
	"github.com/diogo/streamchat/internal/tui"
)

func newChatCmd(deps *Dependencies, root *rootOptions) *cobra.Command {
	var (
		resume string
		fresh  bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Answers stream into the conversation as they arrive. Ctrl+Y and Ctrl+N rate the
latest answer, Ctrl+T copies its trace URL, Esc or Ctrl+C quits.

With saved conversations and no --resume or --new, a picker opens first.

` + history.ListAliases(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config(deps)
			logger := logging.With("chat")

			store, err := deps.OpenStore()
			if err != nil {
				logger.Warn("history unavailable", "error", err)
				fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("⚠ History unavailable: %v", err)))
				store = nil
			}

			var conv *history.Conversation
			switch {
			case resume != "":
				if store == nil {
					return fmt.Errorf("cannot resume without history: %w", err)
				}
				conv, err = history.NewResolver(store).ResolveWithInfo(resume)
				if err != nil {
					return fmt.Errorf("failed to resume: %w", err)
				}
			case !fresh && store != nil && deps.SelectConversation != nil && isTerminal(cmd.InOrStdin()):
				conversations, err := store.ListConversations()
				if err == nil && len(conversations) > 0 {
					res, err := deps.SelectConversation(store, cfg.BaseURL)
					if err != nil {
						return fmt.Errorf("conversation picker failed: %w", err)
					}
					if !res.Confirmed {
						return nil
					}
					conv = res.Conversation
				}
			}

			client, err := deps.NewClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			defer client.Close()

			if cfg.TUITheme != "" && !render.SetTUITheme(cfg.TUITheme) {
				logger.Warn("unknown tui theme, keeping default", "theme", cfg.TUITheme)
			}
			tui.UpdateTheme()

			opts := []tui.Option{
				tui.WithBaseURL(cfg.BaseURL),
				tui.WithRenderOptions(render.OptionsFromConfig(cfg, terminalWidth(cmd.OutOrStdout()))),
				tui.WithCopyTrace(true),
			}
			if store != nil {
				opts = append(opts, tui.WithStore(store))
			}

			return deps.RunChat(newThread(client, cfg, conv), opts...)
		},
	}

	cmd.Flags().StringVarP(&resume, "resume", "r", "", "Resume a saved conversation (@last, index, id or title)")
	cmd.Flags().BoolVar(&fresh, "new", false, "Start a new conversation without the picker")
	cmd.MarkFlagsMutuallyExclusive("resume", "new")

	return cmd
}

// newThread builds the conversation state, continuing conv when given
func newThread(client api.ChatClient, cfg config.Config, conv *history.Conversation) *session.Thread {
	var chatOpts []api.ChatOption
	threadOpts := []session.Option{session.WithFeedbackKey(cfg.FeedbackKey)}

	if conv != nil {
		chatOpts = append(chatOpts,
			api.WithConversationID(conv.ID),
			api.WithHistory(conv.Turns()),
		)
		threadOpts = append(threadOpts, session.WithMessages(conv.Messages))
	}

	return session.New(api.NewChatSession(client, chatOpts...), threadOpts...)
}
