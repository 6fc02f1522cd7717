package render

import (
	"strings"

	"github.com/diogo/streamchat/internal/citation"
	"github.com/diogo/streamchat/internal/models"
)

// Markdown renders markdown content for terminal display.
// Uses a pooled renderer for better performance and thread safety.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	return renderer.Render(content)
}

// MarkdownWithWidth is a convenience function for rendering with specific width.
func MarkdownWithWidth(content string, width int) (string, error) {
	return Markdown(content, DefaultOptions().WithWidth(width))
}

// Answer renders an assistant message with its citation markers resolved
// and the source legend appended. User messages render as plain markdown.
func Answer(msg models.Message, opts Options) (string, error) {
	content := msg.Content
	if msg.IsAssistant() && len(msg.Sources) > 0 {
		set := citation.New(msg.Sources)
		content = set.Markdown(content)
		if legend := set.Legend(); legend != "" {
			content = strings.TrimRight(content, "\n") + "\n\n" + legend
		}
	}
	out, err := Markdown(content, opts)
	if err != nil {
		return content, err
	}
	return strings.TrimRight(out, "\n"), nil
}
