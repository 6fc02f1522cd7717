package history

import (
	"fmt"
	"strings"
	"time"
)

// SearchResult represents a search match in conversations
type SearchResult struct {
	Conversation *Conversation
	MatchSnippet string // Snippet where the term was found
	MatchField   string // "title", "content" or "source"
	MatchIndex   int    // Message index, -1 for title
}

// SearchConversations searches titles and, optionally, message content and
// source titles/URLs
func (s *Store) SearchConversations(query string, searchContent bool) ([]*SearchResult, error) {
	conversations, err := s.ListConversations()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var results []*SearchResult

	for _, conv := range conversations {
		if strings.Contains(strings.ToLower(conv.Title), queryLower) {
			results = append(results, &SearchResult{
				Conversation: conv,
				MatchSnippet: conv.Title,
				MatchField:   "title",
				MatchIndex:   -1,
			})
			continue
		}

		if !searchContent {
			continue
		}
		if r := searchMessages(conv, query, queryLower); r != nil {
			results = append(results, r)
		}
	}

	return results, nil
}

// searchMessages returns the first match in a conversation
func searchMessages(conv *Conversation, query, queryLower string) *SearchResult {
	for i, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Content), queryLower) {
			return &SearchResult{
				Conversation: conv,
				MatchSnippet: extractSnippet(msg.Content, query, 100),
				MatchField:   "content",
				MatchIndex:   i,
			}
		}
		for _, src := range msg.Sources {
			if strings.Contains(strings.ToLower(src.Title), queryLower) ||
				strings.Contains(strings.ToLower(src.URL), queryLower) {
				return &SearchResult{
					Conversation: conv,
					MatchSnippet: src.Label(),
					MatchField:   "source",
					MatchIndex:   i,
				}
			}
		}
	}
	return nil
}

// extractSnippet extracts a snippet around the first occurrence of query
func extractSnippet(content, query string, maxLen int) string {
	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx == -1 {
		if len(content) > maxLen {
			return content[:maxLen] + "..."
		}
		return content
	}

	half := maxLen / 2
	start := idx - half
	end := idx + len(query) + half

	if start < 0 {
		start = 0
		end = maxLen
	}
	if end > len(content) {
		end = len(content)
		start = max(end-maxLen, 0)
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

// FormatRelativeTime formats a time as "5m ago", "yesterday" and so on
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		return t.Format("2006-01-02")
	}
}
