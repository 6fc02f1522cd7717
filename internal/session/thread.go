// Package session owns the state of one conversation: the rendered message
// list, the loading flag and per-message feedback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/diogo/streamchat/internal/api"
	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/stream"
)

// Thread is the message list of a conversation. At most one response
// streams at a time.
type Thread struct {
	mu          sync.Mutex
	chat        *api.ChatSession
	messages    []models.Message
	loading     bool
	inFlight    map[string]bool // message ids with feedback being sent
	feedbackKey string
	logger      *slog.Logger
}

// Option configures a Thread
type Option func(*Thread)

// WithFeedbackKey overrides the key sent with scores
func WithFeedbackKey(key string) Option {
	return func(t *Thread) {
		if key != "" {
			t.feedbackKey = key
		}
	}
}

// WithMessages resumes a thread from stored messages
func WithMessages(messages []models.Message) Option {
	return func(t *Thread) {
		t.messages = append([]models.Message(nil), messages...)
	}
}

// New creates a thread that sends through chat
func New(chat *api.ChatSession, opts ...Option) *Thread {
	t := &Thread{
		chat:        chat,
		inFlight:    make(map[string]bool),
		feedbackKey: models.DefaultFeedbackKey,
		logger:      logging.With("session"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Messages returns a copy of the message list
func (t *Thread) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Message returns the message with id
func (t *Thread) Message(id string) (models.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.indexLocked(id)
	if idx < 0 {
		return models.Message{}, false
	}
	return t.messages[idx], true
}

// LastAssistant returns the most recent assistant message
func (t *Thread) LastAssistant() (models.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].IsAssistant() {
			return t.messages[i], true
		}
	}
	return models.Message{}, false
}

// Loading reports whether a response is streaming
func (t *Thread) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// ConversationID returns the id sent with chat requests
func (t *Thread) ConversationID() string {
	return t.chat.ConversationID()
}

// History returns the plain exchanges used as request context
func (t *Thread) History() []models.Turn {
	return t.chat.History()
}

// Reset clears the thread and starts a new conversation
func (t *Thread) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loading {
		return apierrors.ErrAlreadyLoading
	}
	t.messages = nil
	t.inFlight = make(map[string]bool)
	t.chat.Reset()
	return nil
}

func (t *Thread) indexLocked(id string) int {
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Pending is one submitted message awaiting its streamed answer
type Pending struct {
	thread      *Thread
	text        string
	userID      string
	assistantID string
	before      int
	done        bool
}

// Begin appends the user message and marks the thread loading. It fails
// when a response is already streaming or text is blank.
func (t *Thread) Begin(text string) (*Pending, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierrors.ErrEmptyMessage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.loading {
		return nil, apierrors.ErrAlreadyLoading
	}

	msg := models.NewMessage(models.RoleUser, text)
	p := &Pending{
		thread: t,
		text:   text,
		userID: msg.ID,
		before: len(t.messages),
	}
	t.messages = append(t.messages, msg)
	t.loading = true
	return p, nil
}

// Text returns the submitted text
func (p *Pending) Text() string {
	return p.text
}

// Open starts the chat request with the current history as context
func (p *Pending) Open(ctx context.Context) (*stream.Reader, error) {
	return p.thread.chat.SendMessage(ctx, p.text)
}

// Apply upserts the single assistant message of this response
func (p *Pending) Apply(snap stream.Snapshot) models.Message {
	t := p.thread
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.done {
		return models.Message{}
	}
	if p.assistantID != "" {
		if idx := t.indexLocked(p.assistantID); idx >= 0 {
			msg := &t.messages[idx]
			msg.Content = snap.Text
			msg.HTML = snap.HTML
			msg.RunID = snap.RunID
			msg.Sources = snap.Sources
			return *msg
		}
	}

	msg := models.NewMessage(models.RoleAssistant, snap.Text)
	msg.HTML = snap.HTML
	msg.RunID = snap.RunID
	msg.Sources = snap.Sources
	p.assistantID = msg.ID
	t.messages = append(t.messages, msg)
	return msg
}

// Complete records the exchange in the history and clears loading
func (p *Pending) Complete() models.Message {
	t := p.thread
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.done {
		return models.Message{}
	}
	p.done = true
	t.loading = false

	var answer models.Message
	if idx := t.indexLocked(p.assistantID); p.assistantID != "" && idx >= 0 {
		answer = t.messages[idx]
	} else {
		// An empty stream still yields an (empty) assistant slot
		answer = models.NewMessage(models.RoleAssistant, "")
		t.messages = append(t.messages, answer)
		p.assistantID = answer.ID
	}

	t.chat.Record(p.text, answer.Content)
	return answer
}

// Fail rolls the message list back to its state before Begin and returns
// the text to restore into the input.
func (p *Pending) Fail(err error) string {
	t := p.thread
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.done {
		return p.text
	}
	p.done = true
	t.loading = false

	if p.before <= len(t.messages) {
		t.messages = t.messages[:p.before]
	}
	t.logger.Warn("chat submission failed, rolled back", "error", err)
	return p.text
}

// Send runs a full exchange: Begin, stream, then Complete or Fail. onUpdate
// is called with the assistant message after every chunk.
func (t *Thread) Send(ctx context.Context, text string, onUpdate func(models.Message)) (models.Message, error) {
	p, err := t.Begin(text)
	if err != nil {
		return models.Message{}, err
	}

	reader, err := p.Open(ctx)
	if err != nil {
		p.Fail(err)
		return models.Message{}, err
	}

	_, err = reader.Process(ctx, func(snap stream.Snapshot) error {
		msg := p.Apply(snap)
		if onUpdate != nil {
			onUpdate(msg)
		}
		return nil
	})
	if err != nil {
		p.Fail(err)
		return models.Message{}, err
	}
	return p.Complete(), nil
}

// SubmitFeedback scores an assistant message. Each message accepts one
// submission; later attempts fail with ErrFeedbackExists.
func (t *Thread) SubmitFeedback(ctx context.Context, msgID string, score int, comment string) (models.Feedback, error) {
	if score != models.ScorePositive && score != models.ScoreNegative {
		return models.Feedback{}, fmt.Errorf("invalid score %d", score)
	}

	t.mu.Lock()
	idx := t.indexLocked(msgID)
	if idx < 0 {
		t.mu.Unlock()
		return models.Feedback{}, apierrors.ErrNotFound
	}
	msg := t.messages[idx]
	if msg.Feedback != nil || t.inFlight[msgID] {
		t.mu.Unlock()
		return models.Feedback{}, apierrors.ErrFeedbackExists
	}
	if msg.RunID == "" {
		t.mu.Unlock()
		return models.Feedback{}, apierrors.ErrNoRunID
	}
	t.inFlight[msgID] = true
	t.mu.Unlock()

	fb := models.Feedback{
		Score:      score,
		Key:        t.feedbackKey,
		RunID:      msg.RunID,
		FeedbackID: uuid.NewString(),
		Comment:    comment,
	}
	err := t.chat.Client().SubmitFeedback(ctx, api.NewFeedbackRequest(fb))

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, msgID)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("submit feedback: %w", err)
	}
	if idx := t.indexLocked(msgID); idx >= 0 {
		stored := fb
		t.messages[idx].Feedback = &stored
	}
	t.logger.Info("feedback submitted", "run_id", fb.RunID, "score", fb.Score)
	return fb, nil
}

// AmendFeedback updates the comment of an existing submission, keeping its id
func (t *Thread) AmendFeedback(ctx context.Context, msgID, comment string) (models.Feedback, error) {
	t.mu.Lock()
	idx := t.indexLocked(msgID)
	if idx < 0 {
		t.mu.Unlock()
		return models.Feedback{}, apierrors.ErrNotFound
	}
	if t.messages[idx].Feedback == nil {
		t.mu.Unlock()
		return models.Feedback{}, errors.New("no feedback to amend")
	}
	fb := *t.messages[idx].Feedback
	t.mu.Unlock()

	fb.Comment = comment
	if err := t.chat.Client().UpdateFeedback(ctx, api.NewFeedbackRequest(fb)); err != nil {
		return models.Feedback{}, fmt.Errorf("amend feedback: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if idx := t.indexLocked(msgID); idx >= 0 {
		stored := fb
		t.messages[idx].Feedback = &stored
	}
	return fb, nil
}

// Trace fetches the trace URL for the run behind a message
func (t *Thread) Trace(ctx context.Context, msgID string) (string, error) {
	msg, ok := t.Message(msgID)
	if !ok {
		return "", apierrors.ErrNotFound
	}
	if msg.RunID == "" {
		return "", apierrors.ErrNoRunID
	}
	url, err := t.chat.Client().Trace(ctx, msg.RunID)
	if err != nil {
		return "", fmt.Errorf("get trace: %w", err)
	}
	return url, nil
}
