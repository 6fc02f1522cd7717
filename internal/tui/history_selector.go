package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/streamchat/internal/history"
)

// HistoryStore is what the picker needs from the history store
type HistoryStore interface {
	ListConversations() ([]*history.Conversation, error)
	IsPinned(id string) (bool, error)
}

var _ HistoryStore = (*history.Store)(nil)

type historyLoadedMsg struct {
	conversations []*history.Conversation
	pinned        map[string]bool
	err           error
}

// HistorySelectorModel lets the user resume a stored conversation or
// start a new one
type HistorySelectorModel struct {
	store   HistoryStore
	baseURL string

	conversations []*history.Conversation
	pinned        map[string]bool

	// Row 0 is "New conversation"; row i is conversations[i-1]
	cursor int

	loading   bool
	err       error
	confirmed bool

	selectedConv *history.Conversation

	width  int
	height int
	ready  bool
}

// NewHistorySelectorModel creates a picker over store
func NewHistorySelectorModel(store HistoryStore, baseURL string) HistorySelectorModel {
	return HistorySelectorModel{
		store:   store,
		baseURL: baseURL,
		loading: true,
	}
}

// Init starts loading conversations
func (m HistorySelectorModel) Init() tea.Cmd {
	return m.loadConversations()
}

func (m HistorySelectorModel) loadConversations() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		conversations, err := store.ListConversations()
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		pinned := make(map[string]bool)
		for _, conv := range conversations {
			if ok, err := store.IsPinned(conv.ID); err == nil && ok {
				pinned[conv.ID] = true
			}
		}
		return historyLoadedMsg{conversations: conversations, pinned: pinned}
	}
}

// Update handles messages and updates the model
func (m HistorySelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case historyLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.conversations = msg.conversations
			m.pinned = msg.pinned
		}

	case tea.KeyMsg:
		if m.loading {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit

		case "up", "k":
			m.cursor--
			if m.cursor < 0 {
				m.cursor = len(m.conversations)
			}

		case "down", "j":
			m.cursor++
			if m.cursor > len(m.conversations) {
				m.cursor = 0
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			m.cursor = len(m.conversations)

		case "enter":
			m.confirmed = true
			if m.cursor > 0 {
				m.selectedConv = m.conversations[m.cursor-1]
			}
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the picker
func (m HistorySelectorModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if m.loading {
		return loadingStyle.Render("  Loading conversations...")
	}
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	contentWidth := max(m.width-4, 40)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(contentWidth),
		m.renderList(contentWidth),
		m.renderStatusBar(contentWidth),
	)
}

func (m HistorySelectorModel) renderHeader(width int) string {
	title := listTitleStyle.Render("Resume a conversation")
	parts := []string{title}
	if m.baseURL != "" {
		parts = append(parts, hintStyle.Render("  "+m.baseURL))
	}
	return listHeaderStyle.Width(width).Render(lipgloss.JoinHorizontal(lipgloss.Center, parts...))
}

func (m HistorySelectorModel) renderList(width int) string {
	items := []string{m.renderRow(0, "+ New conversation", "")}

	if len(m.conversations) == 0 {
		items = append(items, hintStyle.Render("  No saved conversations"))
	} else {
		maxItems := max(5, (m.height-12)/2)
		scrollOffset := 0
		if m.cursor >= maxItems {
			scrollOffset = m.cursor - maxItems + 1
		}
		endIdx := min(scrollOffset+maxItems, len(m.conversations)+1)

		for i := max(scrollOffset, 1); i < endIdx; i++ {
			conv := m.conversations[i-1]
			detail := fmt.Sprintf(" %d msgs · %s", len(conv.Messages), history.FormatRelativeTime(conv.UpdatedAt))
			title := conv.Title
			if m.pinned[conv.ID] {
				title = listPinStyle.Render("★ ") + title
			}
			items = append(items, m.renderRow(i, title, detail))
		}

		if scrollOffset > 0 {
			items = append([]string{hintStyle.Render("  ...")}, items...)
		}
		if endIdx < len(m.conversations)+1 {
			items = append(items, hintStyle.Render("  ..."))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{listSectionTitleStyle.Render("Conversations"), ""}, items...)...)
	return listPanelStyle.Width(width).Render(content)
}

func (m HistorySelectorModel) renderRow(index int, title, detail string) string {
	cursor := "  "
	style := listItemStyle
	if index == m.cursor {
		cursor = listCursorStyle.Render("> ")
		style = listSelectedStyle
	}
	line := cursor + style.Render(title)
	if detail != "" {
		line += listTimeStyle.Render(detail)
	}
	return line
}

func (m HistorySelectorModel) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"↑↓", "Navigate"},
		{"Enter", "Select"},
		{"Esc", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return listStatusBarStyle.Width(width).Render(strings.Join(items, "  │  "))
}

// HistorySelectorResult is the outcome of the picker
type HistorySelectorResult struct {
	Conversation *history.Conversation // nil for a new conversation
	Confirmed    bool
}

// Result returns the picked conversation (nil for new) and whether the
// user confirmed
func (m HistorySelectorModel) Result() HistorySelectorResult {
	return HistorySelectorResult{
		Conversation: m.selectedConv,
		Confirmed:    m.confirmed,
	}
}

// RunHistorySelector runs the picker and returns the choice
func RunHistorySelector(store HistoryStore, baseURL string) (HistorySelectorResult, error) {
	p := tea.NewProgram(
		NewHistorySelectorModel(store, baseURL),
		tea.WithAltScreen(),
	)

	finalModel, err := p.Run()
	if err != nil {
		return HistorySelectorResult{}, err
	}
	if hm, ok := finalModel.(HistorySelectorModel); ok {
		return hm.Result(), nil
	}
	return HistorySelectorResult{}, nil
}
