package render

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

// Style names accepted besides glamour's own
const (
	ThemeDark       = styles.DarkStyle
	ThemeLight      = styles.LightStyle
	ThemeTokyoNight = "tokyonight"
	ThemeDracula    = styles.DraculaStyle
	ThemeNoTTY      = styles.NoTTYStyle
	ThemeASCII      = styles.AsciiStyle
)

// aliases maps the names used in config onto glamour's style names
var aliases = map[string]string{
	ThemeTokyoNight: styles.TokyoNightStyle,
	"plain":         styles.NoTTYStyle,
}

// ThemeInfo contains information about a theme for display purposes.
type ThemeInfo struct {
	Name        string
	Description string
}

// AvailableThemes returns the styles that need no external file.
func AvailableThemes() []ThemeInfo {
	return []ThemeInfo{
		{Name: ThemeDark, Description: "Dark theme (default)"},
		{Name: ThemeTokyoNight, Description: "Tokyo Night color scheme"},
		{Name: ThemeLight, Description: "Light theme for bright terminals"},
		{Name: ThemeDracula, Description: "Dracula color scheme"},
		{Name: ThemeNoTTY, Description: "Plain text (no styling)"},
		{Name: ThemeASCII, Description: "ASCII-only output"},
	}
}

// ThemeNames returns just the theme names for selection.
func ThemeNames() []string {
	themes := AvailableThemes()
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}

// IsBuiltinStyle reports whether style resolves without a file.
func IsBuiltinStyle(style string) bool {
	_, ok := builtinStyle(style)
	return ok
}

func builtinStyle(name string) (ansi.StyleConfig, bool) {
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	cfg, ok := styles.DefaultStyles[name]
	if !ok || cfg == nil {
		return ansi.StyleConfig{}, false
	}
	return *cfg, true
}

// styleOption resolves a style to a renderer option. Built-in styles drop
// the document margin so answers line up with the chat bubbles; anything
// else is treated as a path and falls back to dark when missing.
func styleOption(style string) glamour.TermRendererOption {
	if cfg, ok := builtinStyle(style); ok {
		var margin uint
		cfg.Document.Margin = &margin
		return glamour.WithStyles(cfg)
	}
	if _, err := os.Stat(style); err == nil {
		return glamour.WithStylePath(style)
	}
	cfg, _ := builtinStyle(ThemeDark)
	return glamour.WithStyles(cfg)
}
