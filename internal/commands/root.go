// Package commands provides CLI commands for streamchat.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/tui"
)

// Version info (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootOptions carries the persistent flags and the configuration they
// produce, loaded once per invocation
type rootOptions struct {
	baseURL string
	timeout int

	cfg    *config.Config
	cfgErr error
}

// config loads the configuration and applies flag overrides
func (o *rootOptions) config(deps *Dependencies) config.Config {
	if o.cfg != nil {
		return *o.cfg
	}

	cfg := config.DefaultConfig()
	if deps.LoadConfig != nil {
		cfg, o.cfgErr = deps.LoadConfig()
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.timeout > 0 {
		cfg.TimeoutSeconds = o.timeout
	}
	o.cfg = &cfg
	return cfg
}

// NewRootCmd builds the command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	opts := &rootOptions{}
	query := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "streamchat [prompt]",
		Short: "Terminal client for a streaming retrieval chat service",
		Long: `streamchat talks to a retrieval-augmented chat service. Answers stream in
token by token, citations are resolved against the returned sources, and every
answer can be rated or traced by its run id.

Examples:
  streamchat chat                       Start interactive chat
  streamchat chat --resume @last        Continue the latest conversation
  streamchat "What is Go?"              Send a single query
  streamchat -f prompt.md               Read prompt from file
  cat prompt.md | streamchat            Read prompt from stdin
  streamchat feedback <run-id> --score up
  streamchat trace <run-id> --copy`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config(deps)
			if opts.cfgErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", opts.cfgErr)
			}
			if deps.InitLogging != nil {
				if err := deps.InitLogging(cfg); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: logging disabled: %v\n", err)
				}
			}
			logging.With("commands").Debug("command start", "command", cmd.CommandPath(), "base_url", cfg.BaseURL)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "streamchat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			prompt, err := readPrompt(cmd, args, query.file)
			if err != nil {
				return err
			}
			if prompt == "" {
				return cmd.Help()
			}
			return runQuery(cmd, deps, opts.config(deps), prompt, query)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "Service base URL (overrides config and "+config.EnvBaseURL+")")
	cmd.PersistentFlags().IntVar(&opts.timeout, "timeout", 0, "Request timeout in seconds")

	cmd.Flags().StringVarP(&query.file, "file", "f", "", "Read prompt from file")
	cmd.Flags().StringVarP(&query.output, "output", "o", "", "Save the answer to a file")
	cmd.Flags().BoolVar(&query.raw, "raw", false, "Stream plain text even on a terminal")
	cmd.Flags().BoolVarP(&query.copy, "copy", "c", false, "Copy the answer to the clipboard")
	cmd.Flags().BoolVar(&query.noSave, "no-save", false, "Do not store the exchange in history")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(
		newChatCmd(deps, opts),
		newFeedbackCmd(deps, opts),
		newTraceCmd(deps, opts),
		newHistoryCmd(deps),
		newConfigCmd(deps, opts),
	)

	return cmd
}

// Execute runs the root command
func Execute() {
	err := NewRootCmd(NewDependencies()).Execute()
	if err != nil {
		tui.PrintError(err)
	}
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether v is a file attached to a terminal
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or 80 when it is not a terminal
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
