package api

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/diogo/streamchat/internal/stream"
)

// MockChatClient is a mock implementation of ChatClient for testing
type MockChatClient struct {
	mu sync.Mutex

	// Mock return values
	ChatBody    string // NDJSON served as the chat stream
	ChatErr     error
	Formatter   stream.Formatter
	FeedbackErr error
	UpdateErr   error
	TraceURL    string
	TraceErr    error
	URL         string

	// Call recorders
	ChatRequests  []ChatRequest
	FeedbackCalls []FeedbackRequest
	UpdateCalls   []FeedbackRequest
	TraceRunIDs   []string
	CloseCalled   bool
}

// Ensure MockChatClient implements ChatClient
var _ ChatClient = (*MockChatClient)(nil)

func (m *MockChatClient) Chat(ctx context.Context, req ChatRequest) (*stream.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatRequests = append(m.ChatRequests, req)
	if m.ChatErr != nil {
		return nil, m.ChatErr
	}
	body := io.NopCloser(strings.NewReader(m.ChatBody))
	return stream.NewReader(body, m.Formatter, stream.WithEndpoint(EndpointChat)), nil
}

func (m *MockChatClient) SubmitFeedback(ctx context.Context, fb FeedbackRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedbackCalls = append(m.FeedbackCalls, fb)
	return m.FeedbackErr
}

func (m *MockChatClient) UpdateFeedback(ctx context.Context, fb FeedbackRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, fb)
	return m.UpdateErr
}

func (m *MockChatClient) Trace(ctx context.Context, runID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TraceRunIDs = append(m.TraceRunIDs, runID)
	return m.TraceURL, m.TraceErr
}

func (m *MockChatClient) BaseURL() string {
	if m.URL == "" {
		return DefaultBaseURL
	}
	return m.URL
}

func (m *MockChatClient) Close() {
	m.CloseCalled = true
}

// StreamBody joins event lines into an NDJSON body
func StreamBody(lines ...string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
