package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/stream"
)

// ChatSession maintains the conversation context sent with each message
type ChatSession struct {
	client         ChatClient
	mu             sync.RWMutex // Protects conversationID, history
	conversationID string
	history        []models.Turn
}

// ChatOption configures a ChatSession
type ChatOption func(*ChatSession)

// WithConversationID resumes an existing conversation
func WithConversationID(id string) ChatOption {
	return func(s *ChatSession) {
		if id != "" {
			s.conversationID = id
		}
	}
}

// WithHistory seeds the session with earlier exchanges
func WithHistory(turns []models.Turn) ChatOption {
	return func(s *ChatSession) {
		s.history = copyHistory(turns)
	}
}

// NewChatSession starts a conversation with a fresh id
func NewChatSession(client ChatClient, opts ...ChatOption) *ChatSession {
	s := &ChatSession{
		client:         client,
		conversationID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// copyHistory creates a copy of the turns to avoid races
func copyHistory(turns []models.Turn) []models.Turn {
	result := make([]models.Turn, len(turns))
	copy(result, turns)
	return result
}

// SendMessage opens a stream for prompt with the current history as context.
// History is not updated until Record is called with the final answer.
func (s *ChatSession) SendMessage(ctx context.Context, prompt string) (*stream.Reader, error) {
	s.mu.RLock()
	req := ChatRequest{
		Message:        prompt,
		History:        copyHistory(s.history),
		ConversationID: s.conversationID,
	}
	s.mu.RUnlock()

	return s.client.Chat(ctx, req)
}

// Record appends a finished exchange to the history
func (s *ChatSession) Record(human, ai string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, models.Turn{Human: human, AI: ai})
}

// History returns a copy of the exchanges so far
func (s *ChatSession) History() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHistory(s.history)
}

// ConversationID returns the id sent with every request
func (s *ChatSession) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// Client returns the client the session sends through
func (s *ChatSession) Client() ChatClient {
	return s.client
}

// Reset clears the history and starts a new conversation id
func (s *ChatSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.conversationID = uuid.NewString()
}
