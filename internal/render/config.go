package render

import (
	"os"

	"github.com/diogo/streamchat/internal/config"
)

// Environment variables overriding the configured style, most specific first
var styleEnvVars = []string{"STREAMCHAT_GLAMOUR_STYLE", "GLAMOUR_STYLE"}

// OptionsFromConfig builds render options from a loaded configuration.
// Environment variables take precedence over config file values.
func OptionsFromConfig(cfg config.Config, width int) Options {
	opts := FromMarkdownConfig(cfg.Markdown).WithWidth(width)

	for _, name := range styleEnvVars {
		if style := os.Getenv(name); style != "" {
			opts.Style = style
			break
		}
	}

	return opts
}
