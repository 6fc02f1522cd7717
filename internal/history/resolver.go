// Package history provides local conversation history storage.
package history

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Resolver resolves user-friendly references to conversation IDs
type Resolver struct {
	store *Store
}

// NewResolver creates a new alias resolver
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve converts a user-friendly reference to a conversation ID
//
// Supported references:
//   - "@last" - most recently modified conversation
//   - "@first" - least recently modified conversation
//   - "1", "2", "3" - by index (1-based)
//   - "<uuid>" or a unique prefix of at least 8 characters - direct ID
//   - "substring" - fuzzy match on title (error if multiple matches)
func (r *Resolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	if ref == "" {
		return "", fmt.Errorf("empty reference")
	}

	// Get all conversations
	conversations, err := r.store.ListConversations()
	if err != nil {
		return "", fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(conversations) == 0 {
		return "", fmt.Errorf("no conversations found")
	}

	// Handle special aliases
	switch strings.ToLower(ref) {
	case "@last", "@first":
		// Pins reorder the list, so recency is taken from UpdatedAt
		newest, oldest := conversations[0], conversations[0]
		for _, conv := range conversations[1:] {
			if conv.UpdatedAt.After(newest.UpdatedAt) {
				newest = conv
			}
			if conv.UpdatedAt.Before(oldest.UpdatedAt) {
				oldest = conv
			}
		}
		if strings.EqualFold(ref, "@last") {
			return newest.ID, nil
		}
		return oldest.ID, nil
	}

	// Handle numeric index (1-based)
	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(conversations) {
			return "", fmt.Errorf("index %d out of range (1-%d)", index, len(conversations))
		}
		return conversations[index-1].ID, nil
	}

	// Handle direct ID
	if _, err := uuid.Parse(ref); err == nil {
		for _, conv := range conversations {
			if strings.EqualFold(conv.ID, ref) {
				return conv.ID, nil
			}
		}
		return "", fmt.Errorf("conversation not found: %s", ref)
	}

	// Handle ID prefix, as printed by list
	if len(ref) >= minIDPrefix && isHexPrefix(ref) {
		var found []string
		for _, conv := range conversations {
			if strings.HasPrefix(conv.ID, strings.ToLower(ref)) {
				found = append(found, conv.ID)
			}
		}
		if len(found) == 1 {
			return found[0], nil
		}
	}

	// Handle substring match on title (case-insensitive)
	refLower := strings.ToLower(ref)
	var matches []*Conversation
	for _, conv := range conversations {
		if strings.Contains(strings.ToLower(conv.Title), refLower) {
			matches = append(matches, conv)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no conversation matching '%s'", ref)
	case 1:
		return matches[0].ID, nil
	default:
		// Multiple matches - show them to user
		var titles []string
		for _, m := range matches {
			titles = append(titles, fmt.Sprintf("'%s'", m.Title))
		}
		return "", fmt.Errorf("multiple conversations match '%s': %s. Use ID or be more specific",
			ref, strings.Join(titles, ", "))
	}
}

// ResolveWithInfo resolves a reference and returns the conversation info
func (r *Resolver) ResolveWithInfo(ref string) (*Conversation, error) {
	id, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}

	conv, err := r.store.GetConversation(id)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// ValidateRef checks if a reference is valid without resolving it
func (r *Resolver) ValidateRef(ref string) error {
	_, err := r.Resolve(ref)
	return err
}

// ListAliases returns information about supported aliases
func ListAliases() string {
	return `Supported references:
  @last          Most recently modified conversation
  @first         Least recently modified conversation
  1, 2, 3        By index (1-based, from most recent)
  <id>           Conversation ID, or its first 8+ characters
  "text"         Search by title substring`
}

const minIDPrefix = 8

func isHexPrefix(s string) bool {
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && r != '-' {
			return false
		}
	}
	return true
}

// ShortID returns the prefix shown in listings
func ShortID(id string) string {
	if len(id) > minIDPrefix {
		return id[:minIDPrefix]
	}
	return id
}
