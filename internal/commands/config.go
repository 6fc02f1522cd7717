package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/render"
)

func newConfigCmd(deps *Dependencies, root *rootOptions) *cobra.Command {
	show := func(cmd *cobra.Command, args []string) error {
		cfg := root.config(deps)
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		out := cmd.OutOrStdout()
		if path, err := config.GetConfigPath(); err == nil {
			fmt.Fprintln(out, dimStyle.Render("# "+path))
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
		Long: `Show or change the configuration.

Without a subcommand the effective configuration is printed, including
--base-url, --timeout and ` + config.EnvBaseURL + ` overrides.`,
		Args: cobra.NoArgs,
		RunE: show,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE:  show,
		},
		newConfigSetCmd(deps),
		&cobra.Command{
			Use:   "keys",
			Short: "List the keys accepted by config set",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
			},
		},
		&cobra.Command{
			Use:   "themes",
			Short: "List markdown and interface themes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "markdown.style:")
				for _, t := range render.AvailableThemes() {
					_, _ = fmt.Fprintf(w, "  %s\t%s\n", t.Name, t.Description)
				}
				_, _ = fmt.Fprintln(w, "tui_theme:")
				for _, t := range render.AvailableTUIThemes() {
					_, _ = fmt.Fprintf(w, "  %s\t%s\n", t.Name, t.Description)
				}
				return w.Flush()
			},
		},
	)

	return cmd
}

func newConfigSetCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value",
		Long: `Change one configuration value and save it.

Keys: ` + strings.Join(config.Keys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			// Start from the file, not the flag overrides
			cfg := config.DefaultConfig()
			if deps.LoadConfig != nil {
				loaded, err := deps.LoadConfig()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (starting from defaults)\n", err)
				}
				cfg = loaded
			}

			if err := config.Set(&cfg, key, value); err != nil {
				return err
			}

			switch key {
			case "tui_theme":
				if _, ok := render.GetTUIThemeByName(value); !ok {
					return fmt.Errorf("unknown tui theme %q (see: streamchat config themes)", value)
				}
			case "markdown.style":
				if !render.IsBuiltinStyle(value) && !strings.HasSuffix(value, ".json") {
					return fmt.Errorf("unknown markdown style %q (see: streamchat config themes)", value)
				}
			}

			if err := deps.SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ %s = %s", key, value)))
			return nil
		},
	}
}
