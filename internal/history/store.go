// Package history provides local conversation history storage.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diogo/streamchat/internal/config"
	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/models"
)

const titleMaxLen = 50

// Conversation represents a complete chat conversation. ID is the
// conversation_id sent to the service.
type Conversation struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	BaseURL   string           `json:"base_url,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  []models.Message `json:"messages"`
}

// Turns rebuilds the plain history from completed exchanges
func (c *Conversation) Turns() []models.Turn {
	var turns []models.Turn
	var pending *models.Message
	for i := range c.Messages {
		msg := c.Messages[i]
		switch msg.Role {
		case models.RoleUser:
			pending = &c.Messages[i]
		case models.RoleAssistant:
			if pending != nil {
				turns = append(turns, models.Turn{Human: pending.Content, AI: msg.Content})
				pending = nil
			}
		}
	}
	return turns
}

// Store manages conversation history persistence
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a new history store
func NewStore(baseDir string) (*Store, error) {
	historyDir := filepath.Join(baseDir, "history")
	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &Store{
		baseDir: historyDir,
	}, nil
}

// CreateConversation creates a new conversation. An empty id gets a fresh one.
func (s *Store) CreateConversation(id, baseURL string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, err := os.Stat(s.conversationPath(id)); err == nil {
		return nil, fmt.Errorf("conversation already exists: %s", id)
	}

	now := time.Now()
	conv := &Conversation{
		ID:        id,
		Title:     fmt.Sprintf("Chat %s", now.Format("2006-01-02 15:04")),
		BaseURL:   baseURL,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.Message{},
	}

	if err := s.saveConversation(conv); err != nil {
		return nil, err
	}

	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *Store) GetConversation(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadConversation(id)
}

// ListConversations returns all conversations, pinned first, then most recent
func (s *Store) ListConversations() ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var conversations []*Conversation
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" || entry.Name() == indexFileName {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		conv, err := s.loadConversation(id)
		if err != nil {
			continue // Skip corrupted files
		}
		conversations = append(conversations, conv)
	}

	idx, err := s.loadIndex()
	if err != nil {
		idx = newIndex()
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		pi, pj := idx.Pinned[conversations[i].ID], idx.Pinned[conversations[j].ID]
		if pi != pj {
			return pi
		}
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations, nil
}

// SaveMessages replaces the message list of a conversation, creating it
// when missing
func (s *Store) SaveMessages(id, baseURL string, messages []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		now := time.Now()
		conv = &Conversation{ID: id, BaseURL: baseURL, CreatedAt: now}
	}

	conv.Messages = append([]models.Message(nil), messages...)
	conv.UpdatedAt = time.Now()
	if conv.Title == "" || strings.HasPrefix(conv.Title, "Chat ") {
		if title := titleFrom(messages); title != "" {
			conv.Title = title
		}
	}
	if conv.Title == "" {
		conv.Title = fmt.Sprintf("Chat %s", conv.CreatedAt.Format("2006-01-02 15:04"))
	}

	return s.saveConversation(conv)
}

// UpdateMessage replaces a stored message with the same ID
func (s *Store) UpdateMessage(id string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return err
	}

	for i := range conv.Messages {
		if conv.Messages[i].ID == msg.ID {
			conv.Messages[i] = msg
			conv.UpdatedAt = time.Now()
			return s.saveConversation(conv)
		}
	}
	return fmt.Errorf("message %s in conversation %s: %w", msg.ID, id, apierrors.ErrNotFound)
}

// FindByRunID locates the assistant message produced by a run
func (s *Store) FindByRunID(runID string) (*Conversation, models.Message, error) {
	conversations, err := s.ListConversations()
	if err != nil {
		return nil, models.Message{}, err
	}
	for _, conv := range conversations {
		for _, msg := range conv.Messages {
			if msg.RunID == runID {
				return conv, msg, nil
			}
		}
	}
	return nil, models.Message{}, fmt.Errorf("run %s: %w", runID, apierrors.ErrNotFound)
}

// DeleteConversation removes a conversation
func (s *Store) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.conversationPath(id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("conversation not found: %s", id)
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return s.unpinLocked(id)
}

// UpdateTitle updates the title of a conversation
func (s *Store) UpdateTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return err
	}

	conv.Title = title
	conv.UpdatedAt = time.Now()

	return s.saveConversation(conv)
}

// ClearAll deletes all conversations
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to read history directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.baseDir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// Internal methods

func (s *Store) conversationPath(id string) string {
	return filepath.Join(s.baseDir, filepath.Base(id)+".json")
}

type notFoundError struct {
	id string
}

func (e *notFoundError) Error() string {
	return "conversation not found: " + e.id
}

func (e *notFoundError) Unwrap() error {
	return apierrors.ErrNotFound
}

func isNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

func (s *Store) loadConversation(id string) (*Conversation, error) {
	path := s.conversationPath(id)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &notFoundError{id: id}
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	for i, msg := range conv.Messages {
		if _, err := models.ParseRole(string(msg.Role)); err != nil {
			return nil, fmt.Errorf("failed to parse conversation: message %d: %w", i, err)
		}
	}

	return &conv, nil
}

func (s *Store) saveConversation(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	path := s.conversationPath(conv.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}

	return nil
}

func titleFrom(messages []models.Message) string {
	for _, msg := range messages {
		if msg.Role == models.RoleUser && strings.TrimSpace(msg.Content) != "" {
			return truncateTitle(msg.Content)
		}
	}
	return ""
}

func truncateTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	runes := []rune(title)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen]) + "..."
	}
	return title
}

// GetHistoryDir returns the default history root, the config directory
func GetHistoryDir() (string, error) {
	return config.GetConfigDir()
}

// DefaultStore creates a store using the default location
func DefaultStore() (*Store, error) {
	dir, err := GetHistoryDir()
	if err != nil {
		return nil, err
	}
	return NewStore(dir)
}
