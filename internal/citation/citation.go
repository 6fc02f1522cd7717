// Package citation resolves inline citation markers in an answer against
// the de-duplicated list of sources attached to it.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"

	"github.com/diogo/streamchat/internal/models"
)

// markerPattern matches [N], [^N], [$N], [${N}] and [^N^]. N is the
// index of the source in the list as it arrived on the wire.
var markerPattern = regexp.MustCompile(`\[\^?\$?\{?(\d+)\}?\^?\]`)

// FilterSources collapses sources sharing a URL. The first occurrence
// wins, and indexMap sends every original index to the filtered index of
// its URL's first occurrence.
func FilterSources(sources []models.Source) ([]models.Source, map[int]int) {
	filtered := make([]models.Source, 0, len(sources))
	indexMap := make(map[int]int, len(sources))
	firstByURL := make(map[string]int, len(sources))

	for i, src := range sources {
		first, seen := firstByURL[src.URL]
		if !seen {
			firstByURL[src.URL] = i
			indexMap[i] = len(filtered)
			filtered = append(filtered, src)
			continue
		}
		if resolved, ok := indexMap[first]; ok {
			indexMap[i] = resolved
		}
	}

	return filtered, indexMap
}

// Segment is either a run of text or a resolved citation
type Segment struct {
	Text   string
	Cite   bool
	Index  int // filtered index, valid when Cite
	Source models.Source
}

// Set holds the filtered sources for one message
type Set struct {
	Sources  []models.Source
	indexMap map[int]int
}

// New builds a Set from the sources attached to a message
func New(sources []models.Source) *Set {
	filtered, indexMap := FilterSources(sources)
	return &Set{Sources: filtered, indexMap: indexMap}
}

// Lookup maps an original source index to its filtered index
func (s *Set) Lookup(original int) (int, bool) {
	resolved, ok := s.indexMap[original]
	if !ok || resolved < 0 || resolved >= len(s.Sources) {
		return 0, false
	}
	return resolved, true
}

// Resolve splits content at every marker that resolves to a source.
// Markers that do not resolve are left inside the surrounding text.
func (s *Set) Resolve(content string) []Segment {
	return s.resolve(content, nil)
}

// resolve skips markers starting inside any of the code ranges
func (s *Set) resolve(content string, code []span) []Segment {
	var segments []Segment
	prev := 0

	for _, loc := range markerPattern.FindAllStringSubmatchIndex(content, -1) {
		if inSpans(code, loc[0]) {
			continue
		}
		num, err := strconv.Atoi(content[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		resolved, ok := s.Lookup(num)
		if !ok {
			continue
		}

		if loc[0] > prev {
			segments = append(segments, Segment{Text: content[prev:loc[0]]})
		}
		segments = append(segments, Segment{
			Cite:   true,
			Index:  resolved,
			Source: s.Sources[resolved],
		})
		prev = loc[1]
	}

	if prev < len(content) {
		segments = append(segments, Segment{Text: content[prev:]})
	}
	return segments
}

// Cited returns the filtered indices referenced by markdown content, in
// order of first reference. Markers inside code are not citations.
func (s *Set) Cited(content string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, seg := range s.resolve(content, markdownCode(content)) {
		if seg.Cite && !seen[seg.Index] {
			seen[seg.Index] = true
			out = append(out, seg.Index)
		}
	}
	return out
}

// HTML replaces resolved markers in rendered HTML with citation links,
// leaving pre and code elements untouched
func (s *Set) HTML(rendered string) string {
	var sb strings.Builder
	for _, seg := range s.resolve(rendered, htmlCode(rendered)) {
		if !seg.Cite {
			sb.WriteString(seg.Text)
			continue
		}
		fmt.Fprintf(&sb, `<a class="citation" href="%s" title="%s" target="_blank">[%d]</a>`,
			html.EscapeString(seg.Source.URL),
			html.EscapeString(seg.Source.Label()),
			seg.Index,
		)
	}
	return sb.String()
}

// Markdown rewrites resolved markers in raw markdown into a canonical
// bold [n] so the terminal renderer shows them consistently. Code blocks
// and code spans keep their brackets.
func (s *Set) Markdown(content string) string {
	var sb strings.Builder
	for _, seg := range s.resolve(content, markdownCode(content)) {
		if seg.Cite {
			fmt.Fprintf(&sb, "**\\[%d\\]**", seg.Index)
			continue
		}
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// Legend lists the filtered sources as a markdown list
func (s *Set) Legend() string {
	if len(s.Sources) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("**Sources**\n\n")
	for i, src := range s.Sources {
		if src.Title != "" && src.Title != src.URL {
			fmt.Fprintf(&sb, "- \\[%d\\] %s <%s>\n", i, src.Title, src.URL)
		} else {
			fmt.Fprintf(&sb, "- \\[%d\\] <%s>\n", i, src.URL)
		}
	}
	return sb.String()
}

// HTMLLegend lists the filtered sources as an HTML ordered list
func (s *Set) HTMLLegend() string {
	if len(s.Sources) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<ol class="sources" start="0">`)
	for _, src := range s.Sources {
		fmt.Fprintf(&sb, `<li><a href="%s" target="_blank">%s</a></li>`,
			html.EscapeString(src.URL), html.EscapeString(src.Label()))
	}
	sb.WriteString(`</ol>`)
	return sb.String()
}

// span is a half-open byte range
type span struct{ start, end int }

func inSpans(spans []span, pos int) bool {
	for _, sp := range spans {
		if pos >= sp.start && pos < sp.end {
			return true
		}
	}
	return false
}

// markdownCode returns the byte ranges of code blocks and code spans
func markdownCode(content string) []span {
	src := []byte(content)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var spans []span
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if lines := n.Lines(); lines.Len() > 0 {
				spans = append(spans, span{lines.At(0).Start, lines.At(lines.Len() - 1).Stop})
			}
			return ast.WalkSkipChildren, nil
		case ast.KindCodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					spans = append(spans, span{t.Segment.Start, t.Segment.Stop})
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return spans
}

// htmlCode returns the byte ranges enclosed by pre and code elements
func htmlCode(rendered string) []span {
	z := html.NewTokenizer(strings.NewReader(rendered))

	var (
		spans []span
		depth int
		start int
		pos   int
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		size := len(z.Raw())
		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); isCodeTag(name) {
				if depth == 0 {
					start = pos + size
				}
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isCodeTag(name) && depth > 0 {
				depth--
				if depth == 0 {
					spans = append(spans, span{start, pos})
				}
			}
		}
		pos += size
	}
	if depth > 0 {
		spans = append(spans, span{start, len(rendered)})
	}
	return spans
}

func isCodeTag(name []byte) bool {
	return string(name) == "pre" || string(name) == "code"
}
