package history

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/diogo/streamchat/internal/models"
)

func seedExport(t *testing.T) (*Store, string) {
	t.Helper()
	store := newTestStore(t)

	user := models.NewMessage(models.RoleUser, "What is RAG?")
	reply := answer("Retrieval augmented generation [0] combines search [1] with `llm` output [7].", "run-1",
		models.Source{URL: "https://a.example", Title: "Paper A"},
		models.Source{URL: "https://a.example", Title: "Paper A again"},
	)
	reply.Feedback = &models.Feedback{Score: models.ScorePositive, Key: "user_score", RunID: "run-1", FeedbackID: "fb", Comment: "clear"}

	if err := store.SaveMessages("conv-x", "http://svc", []models.Message{user, reply}); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}
	return store, "conv-x"
}

func TestParseExportFormat(t *testing.T) {
	tests := map[string]ExportFormat{
		"md": ExportFormatMarkdown, "markdown": ExportFormatMarkdown,
		".json": ExportFormatJSON, "HTML": ExportFormatHTML, "htm": ExportFormatHTML,
	}
	for in, want := range tests {
		got, err := ParseExportFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseExportFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseExportFormat("pdf"); err == nil {
		t.Error("ParseExportFormat(pdf) should fail")
	}
}

func TestExportToMarkdown(t *testing.T) {
	store, id := seedExport(t)

	md, err := store.ExportToMarkdown(id)
	if err != nil {
		t.Fatalf("ExportToMarkdown failed: %v", err)
	}

	for _, want := range []string{
		"# What is RAG?",
		"**Service:** http://svc",
		"## You",
		"## Assistant",
		`generation **\[0\]** combines search **\[0\]**`, // duplicate URL collapses
		"output [7].", // unknown marker stays text
		`- \[0\] Paper A <https://a.example>`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Paper A again") {
		t.Error("duplicate source listed twice")
	}
	if strings.Contains(md, "run-1") {
		t.Error("metadata included without IncludeMetadata")
	}
}

func TestExportToMarkdown_WithMetadata(t *testing.T) {
	store, id := seedExport(t)

	opts := DefaultExportOptions()
	opts.IncludeMetadata = true
	opts.IncludeSources = false
	md, err := store.ExportToMarkdownWithOptions(id, opts)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(md, "run `run-1`") || !strings.Contains(md, "(clear)") {
		t.Errorf("metadata missing:\n%s", md)
	}
	if strings.Contains(md, "**Sources**") {
		t.Error("legend included with IncludeSources=false")
	}
}

func TestExportToJSON(t *testing.T) {
	store, id := seedExport(t)

	opts := DefaultExportOptions()
	opts.IncludeMetadata = true
	data, err := store.ExportToJSONWithOptions(id, opts)
	if err != nil {
		t.Fatalf("ExportToJSON failed: %v", err)
	}

	var out struct {
		ID       string        `json:"id"`
		History  []models.Turn `json:"history"`
		Messages []struct {
			Role     string           `json:"role"`
			RunID    string           `json:"run_id"`
			Sources  []models.Source  `json:"sources"`
			Feedback *models.Feedback `json:"feedback"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.ID != id {
		t.Errorf("id = %s", out.ID)
	}
	if len(out.History) != 1 || out.History[0].Human != "What is RAG?" {
		t.Errorf("history = %+v", out.History)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %d", len(out.Messages))
	}
	reply := out.Messages[1]
	if reply.RunID != "run-1" || reply.Feedback == nil {
		t.Errorf("metadata missing: %+v", reply)
	}
	if len(reply.Sources) != 1 {
		t.Errorf("sources = %d, want 1 after de-duplication", len(reply.Sources))
	}

	plain, _ := store.ExportToJSON(id)
	if strings.Contains(string(plain), "run-1") {
		t.Error("default JSON export should omit run ids")
	}
}

func TestExportToHTML(t *testing.T) {
	store, id := seedExport(t)

	page, err := store.ExportToHTML(id)
	if err != nil {
		t.Fatalf("ExportToHTML failed: %v", err)
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("invalid HTML: %v", err)
	}

	var citations, sourceItems int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if n.Data == "a" && a.Key == "class" && a.Val == "citation" {
					citations++
				}
			}
			if n.Data == "li" {
				sourceItems++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if citations != 2 {
		t.Errorf("citation links = %d, want 2", citations)
	}
	if sourceItems != 1 {
		t.Errorf("legend items = %d, want 1", sourceItems)
	}
	if !strings.Contains(page, "[7]") {
		t.Error("unresolved marker should stay as text")
	}
	if !strings.Contains(page, "<code>llm</code>") {
		t.Error("markdown was not rendered")
	}
	if !strings.Contains(page, ".chroma") {
		t.Error("highlight CSS missing")
	}
}

func TestExport_Dispatch(t *testing.T) {
	store, id := seedExport(t)
	for _, format := range []ExportFormat{ExportFormatMarkdown, ExportFormatJSON, ExportFormatHTML} {
		out, err := store.Export(id, ExportOptions{Format: format})
		if err != nil || len(out) == 0 {
			t.Errorf("Export(%s) = %d bytes, %v", format, len(out), err)
		}
	}
	if _, err := store.Export("missing", DefaultExportOptions()); err == nil {
		t.Error("exporting a missing conversation should fail")
	}
}

func TestSearchConversations(t *testing.T) {
	store, id := seedExport(t)

	tests := []struct {
		query   string
		content bool
		field   string
	}{
		{query: "rag", content: false, field: "title"},
		{query: "COMBINES", content: true, field: "content"},
		{query: "a.example", content: true, field: "source"},
		{query: "combines", content: false, field: ""},
	}

	for _, tt := range tests {
		results, err := store.SearchConversations(tt.query, tt.content)
		if err != nil {
			t.Fatalf("SearchConversations failed: %v", err)
		}
		if tt.field == "" {
			if len(results) != 0 {
				t.Errorf("%q: expected no results, got %d", tt.query, len(results))
			}
			continue
		}
		if len(results) != 1 {
			t.Fatalf("%q: expected 1 result, got %d", tt.query, len(results))
		}
		if results[0].MatchField != tt.field || results[0].Conversation.ID != id {
			t.Errorf("%q: field = %s", tt.query, results[0].MatchField)
		}
	}
}

func TestExtractSnippet(t *testing.T) {
	content := strings.Repeat("a", 100) + "needle" + strings.Repeat("b", 100)
	snippet := extractSnippet(content, "needle", 20)
	if !strings.Contains(snippet, "needle") || !strings.HasPrefix(snippet, "...") || !strings.HasSuffix(snippet, "...") {
		t.Errorf("snippet = %q", snippet)
	}

	if got := extractSnippet("needle at start", "needle", 100); got != "needle at start" {
		t.Errorf("short content snippet = %q", got)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-30 * time.Hour), "yesterday"},
		{now.Add(-4 * 24 * time.Hour), "4 days ago"},
		{now.Add(-8 * 24 * time.Hour), "1 week ago"},
		{now.Add(-15 * 24 * time.Hour), "2 weeks ago"},
	}
	for _, tt := range tests {
		if got := FormatRelativeTime(tt.t); got != tt.want {
			t.Errorf("FormatRelativeTime(%v) = %q, want %q", now.Sub(tt.t), got, tt.want)
		}
	}

	old := time.Date(2020, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := FormatRelativeTime(old); got != "2020-03-04" {
		t.Errorf("old date = %q", got)
	}
}
