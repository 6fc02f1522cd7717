package models

import (
	"time"

	"github.com/google/uuid"
)

// Source is a citation reference attached to an assistant response
type Source struct {
	URL      string         `json:"url"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Label returns the title, falling back to the URL
func (s Source) Label() string {
	if s.Title != "" {
		return s.Title
	}
	return s.URL
}

// Feedback is a score recorded against a streamed run
type Feedback struct {
	Score      int    `json:"score"`
	Key        string `json:"key"`
	RunID      string `json:"run_id"`
	FeedbackID string `json:"feedback_id"`
	Comment    string `json:"comment,omitempty"`
}

// Message represents a chat message for display
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	Feedback  *Feedback `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh client-side ID
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// IsAssistant reports whether the message was produced by the service
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// Turn is one exchange of the plain conversation history sent as context
type Turn struct {
	Human string `json:"human"`
	AI    string `json:"ai"`
}
