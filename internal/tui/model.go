package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/streamchat/internal/history"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/render"
	"github.com/diogo/streamchat/internal/session"
	"github.com/diogo/streamchat/internal/stream"
)

// writeClipboard is swapped in tests
var writeClipboard = clipboard.WriteAll

type animationTickMsg time.Time

// Message types for the TUI
type (
	// streamOpenedMsg carries the reader once the chat request is accepted
	streamOpenedMsg struct {
		reader *stream.Reader
	}
	// chunkMsg is one snapshot read from the stream
	chunkMsg struct {
		snap stream.Snapshot
	}
	// streamErrMsg ends the exchange in failure
	streamErrMsg struct {
		err error
	}
	feedbackMsg struct {
		score int
		err   error
	}
	traceMsg struct {
		url    string
		copied bool
		err    error
	}
)

// MessageStore persists the message list after every finished exchange
type MessageStore interface {
	SaveMessages(id, baseURL string, messages []models.Message) error
}

var _ MessageStore = (*history.Store)(nil)

// Model represents the TUI state
type Model struct {
	thread  *session.Thread
	ctx     context.Context
	baseURL string

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// Exchange in progress
	pending *session.Pending
	reader  *stream.Reader

	// State
	ready          bool
	notice         string
	err            error
	animationFrame int
	renderOpts     render.Options
	copyTrace      bool

	store MessageStore

	// Dimensions
	width  int
	height int
}

// Option configures a Model
type Option func(*Model)

// WithStore persists the conversation after each answer and feedback
func WithStore(store MessageStore) Option {
	return func(m *Model) {
		m.store = store
	}
}

// WithBaseURL shows the service address in the header and stores it
// with the conversation
func WithBaseURL(baseURL string) Option {
	return func(m *Model) {
		m.baseURL = baseURL
	}
}

// WithRenderOptions sets the glamour options used for answers
func WithRenderOptions(opts render.Options) Option {
	return func(m *Model) {
		m.renderOpts = opts
	}
}

// WithCopyTrace controls whether Ctrl+T copies the trace URL
func WithCopyTrace(copyTrace bool) Option {
	return func(m *Model) {
		m.copyTrace = copyTrace
	}
}

// NewChatModel creates a chat model over thread
func NewChatModel(thread *session.Thread, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	m := Model{
		thread:     thread,
		ctx:        context.Background(),
		textarea:   ta,
		spinner:    s,
		renderOpts: render.DefaultOptions(),
		copyTrace:  true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
	)
}

func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		inputHeight := 6
		statusHeight := 2 // notice + shortcuts
		padding := 2

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}
		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+y":
			return m, m.feedback(models.ScorePositive)

		case "ctrl+n":
			return m, m.feedback(models.ScoreNegative)

		case "ctrl+t":
			return m, m.trace()

		case "ctrl+l":
			if err := m.thread.Reset(); err != nil {
				m.setError(err)
				return m, nil
			}
			m.notice = "Started a new conversation"
			m.err = nil
			m.updateViewport()
			return m, nil

		case "enter":
			if m.pending != nil {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			if input == "/exit" || input == "/quit" {
				return m, tea.Quit
			}
			return m.submit(input)
		}

	case streamOpenedMsg:
		m.reader = msg.reader
		return m, m.readNext()

	case chunkMsg:
		if m.pending == nil {
			return m, nil
		}
		m.pending.Apply(msg.snap)
		if msg.snap.Done {
			m.pending.Complete()
			m.pending = nil
			m.reader = nil
			m.notice = ""
			m.updateViewport()
			m.viewport.GotoBottom()
			m.persist()
			return m, nil
		}
		m.updateViewport()
		m.viewport.GotoBottom()
		return m, m.readNext()

	case streamErrMsg:
		if m.pending != nil {
			text := m.pending.Fail(msg.err)
			m.textarea.SetValue(text)
		}
		m.pending = nil
		m.reader = nil
		m.setError(msg.err)
		m.updateViewport()
		return m, nil

	case feedbackMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.err = nil
		if msg.score == models.ScorePositive {
			m.notice = "Thanks for the feedback 👍"
		} else {
			m.notice = "Thanks for the feedback 👎"
		}
		m.updateViewport()
		m.persist()
		return m, nil

	case traceMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.err = nil
		if msg.copied {
			m.notice = "Trace URL copied: " + msg.url
		} else {
			m.notice = "Trace: " + msg.url
		}
		return m, nil

	case noticeMsg:
		m.err = nil
		m.notice = string(msg)
		return m, nil

	case spinner.TickMsg:
		if m.pending != nil {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.pending != nil {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// Only key presses reach the textarea, and never while streaming
	if m.pending == nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit appends the user message and opens the stream
func (m Model) submit(input string) (tea.Model, tea.Cmd) {
	p, err := m.thread.Begin(input)
	if err != nil {
		m.setError(err)
		return m, nil
	}
	m.pending = p
	m.err = nil
	m.notice = ""
	m.animationFrame = 0
	m.textarea.Reset()
	m.updateViewport()
	m.viewport.GotoBottom()

	return m, tea.Batch(
		m.openStream(p),
		m.spinner.Tick,
		animationTick(),
	)
}

func (m Model) openStream(p *session.Pending) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		reader, err := p.Open(ctx)
		if err != nil {
			return streamErrMsg{err: err}
		}
		return streamOpenedMsg{reader: reader}
	}
}

// readNext schedules a single read; the next one is scheduled only after
// its chunk has been applied
func (m Model) readNext() tea.Cmd {
	reader, ctx := m.reader, m.ctx
	if reader == nil {
		return nil
	}
	return func() tea.Msg {
		snap, err := reader.Next(ctx)
		if err != nil {
			return streamErrMsg{err: err}
		}
		return chunkMsg{snap: snap}
	}
}

// answerInFlight is shown when a key acts on the answer still streaming
const answerInFlight = "Wait for the answer to finish"

func (m Model) feedback(score int) tea.Cmd {
	if m.pending != nil {
		return noticeCmd(answerInFlight)
	}
	last, ok := m.thread.LastAssistant()
	if !ok {
		return noticeCmd("No answer to rate yet")
	}
	thread, ctx := m.thread, m.ctx
	return func() tea.Msg {
		_, err := thread.SubmitFeedback(ctx, last.ID, score, "")
		return feedbackMsg{score: score, err: err}
	}
}

func (m Model) trace() tea.Cmd {
	if m.pending != nil {
		return noticeCmd(answerInFlight)
	}
	last, ok := m.thread.LastAssistant()
	if !ok {
		return noticeCmd("No answer to trace yet")
	}
	thread, ctx, copyTrace := m.thread, m.ctx, m.copyTrace
	return func() tea.Msg {
		url, err := thread.Trace(ctx, last.ID)
		if err != nil {
			return traceMsg{err: err}
		}
		copied := false
		if copyTrace {
			copied = writeClipboard(url) == nil
		}
		return traceMsg{url: url, copied: copied}
	}
}

// noticeMsg replaces the status notice
type noticeMsg string

func noticeCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(text)
	}
}

func (m *Model) setError(err error) {
	m.err = err
	m.notice = ""
}

// persist saves the thread when a store is configured; failures become a notice
func (m *Model) persist() {
	if m.store == nil {
		return
	}
	if err := m.store.SaveMessages(m.thread.ConversationID(), m.baseURL, m.thread.Messages()); err != nil {
		m.notice = "History not saved: " + err.Error()
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	// Header
	headerParts := []string{
		titleStyle.Render("✦ streamchat"),
	}
	if m.baseURL != "" {
		headerParts = append(headerParts,
			hintStyle.Render("  •  "),
			subtitleStyle.Render(m.baseURL),
		)
	}
	headerParts = append(headerParts,
		hintStyle.Render("  •  "),
		subtitleStyle.Render(history.ShortID(m.thread.ConversationID())),
	)
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center, headerParts...)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	// Messages
	var messagesContent string
	if len(m.thread.Messages()) == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	// Input
	var inputContent string
	if m.pending != nil {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	// Notice line
	switch {
	case m.err != nil:
		sections = append(sections, errorStyle.Render("⚠ "+m.err.Error()))
	case m.notice != "":
		sections = append(sections, noticeStyle.Render(m.notice))
	default:
		sections = append(sections, "")
	}

	sections = append(sections, m.renderStatusBar(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		welcomeIconStyle.Width(width).Render("✦"),
		"",
		welcomeTitleStyle.Width(width).Render("Ask anything"),
		"",
		welcomeStyle.Width(width).Render("Answers stream in with their sources"),
		"",
	)

	topPadding := (height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

func (m Model) renderLoadingAnimation() string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "▓", "▒", "░"}

	frame := m.animationFrame

	spin := lipgloss.NewStyle().
		Foreground(gradientColors[frame%len(gradientColors)]).
		Bold(true).
		Render(chars[frame%len(chars)])

	barWidth := 20
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		style := lipgloss.NewStyle().Foreground(gradientColors[(i+frame)%len(gradientColors)])
		bar.WriteString(style.Render(barChars[(i+frame/2)%len(barChars)]))
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(" streaming answer ")
	return fmt.Sprintf("%s %s %s %s", spin, bar.String(), text, m.spinner.View())
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"^Y/^N", "Rate"},
		{"^T", "Trace"},
		{"^L", "New"},
		{"Esc", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		))
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Center, strings.Join(items, "  │  "))
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport refreshes the viewport content with styled messages
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6

	for i, msg := range m.thread.Messages() {
		if i > 0 {
			content.WriteString("\n")
		}

		if !msg.IsAssistant() {
			label := userLabelStyle.Render("⬤ You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(msg.Content)
			content.WriteString(label + "\n" + bubble + "\n")
			continue
		}

		content.WriteString(assistantLabelStyle.Render("✦ Assistant") + "\n")
		body := msg.Content
		if body == "" {
			body = hintStyle.Render("…")
		} else if rendered, err := render.Answer(msg, m.renderOpts.WithWidth(bubbleWidth-4)); err == nil {
			body = rendered
		}
		content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(body))
		content.WriteString("\n")
		if meta := messageMeta(msg); meta != "" {
			content.WriteString(meta + "\n")
		}
	}

	m.viewport.SetContent(content.String())
}

// messageMeta shows the run id and any recorded feedback under an answer
func messageMeta(msg models.Message) string {
	var parts []string
	if msg.RunID != "" {
		parts = append(parts, metaStyle.Render("run "+history.ShortID(msg.RunID)))
	}
	if fb := msg.Feedback; fb != nil {
		if fb.Score == models.ScorePositive {
			parts = append(parts, positiveStyle.Render("👍"))
		} else {
			parts = append(parts, negativeStyle.Render("👎"))
		}
	}
	return strings.Join(parts, " ")
}

// RunChat starts the chat TUI
func RunChat(thread *session.Thread, opts ...Option) error {
	p := tea.NewProgram(
		NewChatModel(thread, opts...),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
