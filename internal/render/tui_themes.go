package render

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// DefaultTUITheme is the palette used until the config selects another
const DefaultTUITheme = "tokyonight"

// TUITheme is the palette of the chat interface. Positive and Negative
// color the feedback marks under an answer.
type TUITheme struct {
	Name        string
	Description string

	Border lipgloss.Color

	Primary   lipgloss.Color // assistant bubbles, input label
	Secondary lipgloss.Color // user bubbles
	Accent    lipgloss.Color // streaming indicator
	Warning   lipgloss.Color // notices
	Error     lipgloss.Color

	Positive lipgloss.Color
	Negative lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

var tuiThemes = []TUITheme{
	{
		Name:        "tokyonight",
		Description: "Tokyo Night, dark with blue accents",
		Border:      "#414868",
		Primary:     "#7aa2f7",
		Secondary:   "#9ece6a",
		Accent:      "#bb9af7",
		Warning:     "#e0af68",
		Error:       "#f7768e",
		Positive:    "#73daca",
		Negative:    "#ff9e64",
		Text:        "#c0caf5",
		TextDim:     "#565f89",
		TextMute:    "#3b4261",
	},
	{
		Name:        "catppuccin",
		Description: "Catppuccin Mocha, warm pastels",
		Border:      "#45475a",
		Primary:     "#89b4fa",
		Secondary:   "#a6e3a1",
		Accent:      "#cba6f7",
		Warning:     "#f9e2af",
		Error:       "#f38ba8",
		Positive:    "#94e2d5",
		Negative:    "#fab387",
		Text:        "#cdd6f4",
		TextDim:     "#6c7086",
		TextMute:    "#45475a",
	},
	{
		Name:        "nord",
		Description: "Nord, cool arctic tones",
		Border:      "#4c566a",
		Primary:     "#88c0d0",
		Secondary:   "#a3be8c",
		Accent:      "#b48ead",
		Warning:     "#ebcb8b",
		Error:       "#bf616a",
		Positive:    "#8fbcbb",
		Negative:    "#d08770",
		Text:        "#eceff4",
		TextDim:     "#7b88a1",
		TextMute:    "#4c566a",
	},
	{
		Name:        "dracula",
		Description: "Dracula, vivid on dark grey",
		Border:      "#6272a4",
		Primary:     "#8be9fd",
		Secondary:   "#50fa7b",
		Accent:      "#ff79c6",
		Warning:     "#f1fa8c",
		Error:       "#ff5555",
		Positive:    "#50fa7b",
		Negative:    "#ffb86c",
		Text:        "#f8f8f2",
		TextDim:     "#6272a4",
		TextMute:    "#44475a",
	},
}

var (
	themeMu         sync.RWMutex
	currentTUITheme = tuiThemes[0]
)

// GetTUITheme returns the active palette
func GetTUITheme() TUITheme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTUITheme
}

// SetTUITheme activates a palette by name and reports whether it exists.
// An unknown name leaves the active palette unchanged.
func SetTUITheme(name string) bool {
	theme, ok := GetTUIThemeByName(name)
	if !ok {
		return false
	}
	themeMu.Lock()
	currentTUITheme = theme
	themeMu.Unlock()
	return true
}

// GetTUIThemeByName looks up a built-in palette
func GetTUIThemeByName(name string) (TUITheme, bool) {
	for _, t := range tuiThemes {
		if t.Name == name {
			return t, true
		}
	}
	return TUITheme{}, false
}

// AvailableTUIThemes returns the built-in palettes in display order
func AvailableTUIThemes() []TUITheme {
	return append([]TUITheme(nil), tuiThemes...)
}

// TUIThemeNames returns the palette names in display order
func TUIThemeNames() []string {
	names := make([]string, len(tuiThemes))
	for i, t := range tuiThemes {
		names[i] = t.Name
	}
	return names
}
