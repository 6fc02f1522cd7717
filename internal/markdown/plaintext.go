package markdown

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// blockTags end a line of plain text
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "blockquote": true,
}

// PlainText strips tags from rendered HTML, keeping text and line breaks
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))

	var sb strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.TrimSpace(collapseBlankLines(sb.String()))
			}
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] && (tt != html.StartTagToken || string(name) == "br") {
				sb.WriteByte('\n')
			}
		}
	}
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
