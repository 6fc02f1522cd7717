// Package render provides markdown rendering utilities for terminal output.
package render

import "github.com/diogo/streamchat/internal/config"

// Options configures the markdown renderer behavior.
type Options struct {
	// Width defines the maximum output width (default: 80)
	Width int

	// Style is a glamour style name or a path to a JSON style file
	Style string

	// EnableEmoji converts :emoji: to unicode characters
	EnableEmoji bool

	// PreserveNewLines preserves original line breaks
	PreserveNewLines bool

	// TableWrap enables word wrap in table cells
	TableWrap bool

	// InlineTableLinks renders links inline in tables
	InlineTableLinks bool
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return FromMarkdownConfig(config.DefaultMarkdownConfig()).WithWidth(80)
}

// FromMarkdownConfig maps the user's markdown settings onto Options.
func FromMarkdownConfig(md config.MarkdownConfig) Options {
	style := md.Style
	if style == "" {
		style = ThemeDark
	}
	return Options{
		Width:            80,
		Style:            style,
		EnableEmoji:      md.EnableEmoji,
		PreserveNewLines: md.PreserveNewLines,
		TableWrap:        md.TableWrap,
		InlineTableLinks: md.InlineTableLinks,
	}
}

// WithWidth returns Options with the specified width.
func (o Options) WithWidth(width int) Options {
	if width > 0 {
		o.Width = width
	}
	return o
}

// WithStyle returns Options with the specified style.
func (o Options) WithStyle(style string) Options {
	o.Style = style
	return o
}
