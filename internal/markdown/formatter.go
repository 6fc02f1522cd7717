// Package markdown converts accumulated answer text into sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"
	"io"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// DefaultCodeStyle is the chroma style used for fenced code blocks
const DefaultCodeStyle = "github-dark"

// Formatter renders markdown to HTML. It is safe for concurrent use.
type Formatter struct {
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	codeStyle string
}

// Option configures a Formatter
type Option func(*Formatter)

// WithCodeStyle sets the chroma style name for code highlighting
func WithCodeStyle(name string) Option {
	return func(f *Formatter) {
		f.codeStyle = name
	}
}

// NewFormatter creates a formatter with GFM and chroma highlighting enabled
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{codeStyle: DefaultCodeStyle}
	for _, opt := range opts {
		opt(f)
	}

	f.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(f.codeStyle),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowElements("pre", "code", "span")
	policy.AllowAttrs("class").OnElements("pre", "code", "span", "div", "a")
	policy.AllowAttrs("title").OnElements("a")
	policy.RequireNoFollowOnLinks(false)
	f.policy = policy

	return f
}

// HTML converts the full markdown text to sanitized HTML
func (f *Formatter) HTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := f.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return f.policy.Sanitize(buf.String()), nil
}

// WriteCSS writes the stylesheet matching the highlighted code classes
func (f *Formatter) WriteCSS(w io.Writer) error {
	style := styles.Get(f.codeStyle)
	if style == nil {
		style = styles.Fallback
	}
	return chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(w, style)
}
