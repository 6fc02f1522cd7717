package history

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/diogo/streamchat/internal/citation"
	"github.com/diogo/streamchat/internal/markdown"
	"github.com/diogo/streamchat/internal/models"
)

// ExportFormat represents the format for exporting conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
	ExportFormatHTML     ExportFormat = "html"
)

// ParseExportFormat accepts a format name or a file extension
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "md", "markdown":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	case "html", "htm":
		return ExportFormatHTML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use markdown, json or html)", s)
	}
}

// ExportOptions configures how conversations are exported
type ExportOptions struct {
	Format          ExportFormat
	IncludeMetadata bool // Include run ids and feedback
	IncludeSources  bool // Append the source legend to answers
}

// DefaultExportOptions returns sensible defaults for export
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:          ExportFormatMarkdown,
		IncludeMetadata: false,
		IncludeSources:  true,
	}
}

// Export renders a conversation in the format named by opts
func (s *Store) Export(id string, opts ExportOptions) ([]byte, error) {
	switch opts.Format {
	case ExportFormatJSON:
		return s.ExportToJSONWithOptions(id, opts)
	case ExportFormatHTML:
		out, err := s.ExportToHTMLWithOptions(id, opts)
		return []byte(out), err
	default:
		out, err := s.ExportToMarkdownWithOptions(id, opts)
		return []byte(out), err
	}
}

// ExportToMarkdown exports a conversation to Markdown format
func (s *Store) ExportToMarkdown(id string) (string, error) {
	return s.ExportToMarkdownWithOptions(id, DefaultExportOptions())
}

// ExportToMarkdownWithOptions exports a conversation to Markdown with options
func (s *Store) ExportToMarkdownWithOptions(id string, opts ExportOptions) (string, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(conv.Title)
	sb.WriteString("\n\n")

	if conv.BaseURL != "" {
		fmt.Fprintf(&sb, "**Service:** %s\n", conv.BaseURL)
	}
	fmt.Fprintf(&sb, "**Created:** %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Updated:** %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Messages:** %d\n\n---\n\n", len(conv.Messages))

	for i, msg := range conv.Messages {
		sb.WriteString("## ")
		sb.WriteString(msg.Role.Label())
		if !msg.Timestamp.IsZero() {
			sb.WriteString(" (")
			sb.WriteString(msg.Timestamp.Format("15:04:05"))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		content := msg.Content
		var set *citation.Set
		if msg.IsAssistant() && len(msg.Sources) > 0 {
			set = citation.New(msg.Sources)
			content = set.Markdown(content)
		}
		sb.WriteString(content)
		sb.WriteString("\n")

		if opts.IncludeSources && set != nil {
			sb.WriteString("\n")
			sb.WriteString(set.Legend())
		}
		if opts.IncludeMetadata && msg.IsAssistant() {
			sb.WriteString(metadataLine(msg))
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String(), nil
}

func metadataLine(msg models.Message) string {
	var parts []string
	if msg.RunID != "" {
		parts = append(parts, "run `"+msg.RunID+"`")
	}
	if fb := msg.Feedback; fb != nil {
		verdict := "👎"
		if fb.Score == models.ScorePositive {
			verdict = "👍"
		}
		part := "feedback " + verdict
		if fb.Comment != "" {
			part += " (" + fb.Comment + ")"
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n_" + strings.Join(parts, " · ") + "_\n"
}

// ExportToJSON exports a conversation to JSON format
func (s *Store) ExportToJSON(id string) ([]byte, error) {
	return s.ExportToJSONWithOptions(id, DefaultExportOptions())
}

// ExportToJSONWithOptions exports a conversation to JSON with options
func (s *Store) ExportToJSONWithOptions(id string, opts ExportOptions) ([]byte, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return nil, err
	}

	type ExportMessage struct {
		Role      models.Role      `json:"role"`
		Content   string           `json:"content"`
		Sources   []models.Source  `json:"sources,omitempty"`
		RunID     string           `json:"run_id,omitempty"`
		Feedback  *models.Feedback `json:"feedback,omitempty"`
		Timestamp time.Time        `json:"timestamp"`
	}

	type ExportConversation struct {
		ID        string          `json:"id"`
		Title     string          `json:"title"`
		BaseURL   string          `json:"base_url,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
		History   []models.Turn   `json:"history"`
		Messages  []ExportMessage `json:"messages"`
	}

	export := ExportConversation{
		ID:        conv.ID,
		Title:     conv.Title,
		BaseURL:   conv.BaseURL,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		History:   conv.Turns(),
		Messages:  make([]ExportMessage, len(conv.Messages)),
	}
	if export.History == nil {
		export.History = []models.Turn{}
	}

	for i, msg := range conv.Messages {
		export.Messages[i] = ExportMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
		if opts.IncludeSources && len(msg.Sources) > 0 {
			filtered, _ := citation.FilterSources(msg.Sources)
			export.Messages[i].Sources = filtered
		}
		if opts.IncludeMetadata {
			export.Messages[i].RunID = msg.RunID
			export.Messages[i].Feedback = msg.Feedback
		}
	}

	return json.MarshalIndent(export, "", "  ")
}

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
.message { margin: 1.5rem 0; }
.message .role { font-weight: 600; color: #555; }
.message.user .body { background: #f3f4f6; border-radius: 0.5rem; padding: 0.5rem 1rem; }
a.citation { font-size: 0.8em; vertical-align: super; text-decoration: none; }
ol.sources { font-size: 0.9em; color: #444; }
pre { padding: 0.75rem; border-radius: 0.4rem; overflow-x: auto; }
.meta { font-size: 0.8em; color: #777; }
%s</style>
</head>
<body>
`

// ExportToHTML exports a conversation as a standalone HTML page
func (s *Store) ExportToHTML(id string) (string, error) {
	return s.ExportToHTMLWithOptions(id, DefaultExportOptions())
}

// ExportToHTMLWithOptions renders every message through the markdown pass
// and links citations to their sources
func (s *Store) ExportToHTMLWithOptions(id string, opts ExportOptions) (string, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return "", err
	}

	formatter := markdown.NewFormatter()
	var css strings.Builder
	if err := formatter.WriteCSS(&css); err != nil {
		return "", fmt.Errorf("failed to write highlight css: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, htmlHead, html.EscapeString(conv.Title), css.String())
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(conv.Title))
	fmt.Fprintf(&sb, "<p class=\"meta\">%s</p>\n", conv.CreatedAt.Format("2006-01-02 15:04"))

	for _, msg := range conv.Messages {
		rendered, err := formatter.HTML(msg.Content)
		if err != nil {
			rendered = "<p>" + html.EscapeString(msg.Content) + "</p>"
		}

		var legend string
		if msg.IsAssistant() && len(msg.Sources) > 0 {
			set := citation.New(msg.Sources)
			rendered = set.HTML(rendered)
			if opts.IncludeSources {
				legend = set.HTMLLegend()
			}
		}

		fmt.Fprintf(&sb, "<div class=\"message %s\">\n<div class=\"role\">%s</div>\n<div class=\"body\">%s</div>\n",
			msg.Role, html.EscapeString(msg.Role.Label()), rendered)
		sb.WriteString(legend)
		if opts.IncludeMetadata && msg.RunID != "" {
			fmt.Fprintf(&sb, "<div class=\"meta\">run %s</div>\n", html.EscapeString(msg.RunID))
		}
		sb.WriteString("</div>\n")
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}
