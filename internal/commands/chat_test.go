package commands

import (
	"errors"
	"testing"

	"github.com/diogo/streamchat/internal/api"
	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/history"
	"github.com/diogo/streamchat/internal/tui"
)

func TestChatStartsNewConversation(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "old question", "old answer", "run-old")

	if _, _, err := env.run("", "chat", "--new"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.threads) != 1 {
		t.Fatalf("expected RunChat once, got %d", len(env.threads))
	}
	th := env.threads[0]
	if len(th.Messages()) != 0 || len(th.History()) != 0 {
		t.Errorf("new chat should start empty, got %d messages", len(th.Messages()))
	}
	if len(env.chatOpt) == 0 {
		t.Error("expected tui options")
	}
}

func TestChatSkipsPickerWithoutTerminal(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "old question", "old answer", "run-old")
	env.deps.SelectConversation = func(tui.HistoryStore, string) (tui.HistorySelectorResult, error) {
		t.Error("picker should not open when stdin is not a terminal")
		return tui.HistorySelectorResult{}, nil
	}

	if _, _, err := env.run("", "chat"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.threads) != 1 {
		t.Fatalf("expected RunChat once, got %d", len(env.threads))
	}
}

func TestChatResume(t *testing.T) {
	env := newTestEnv(t)
	id := env.seed(t, "old question", "old answer", "run-old")

	if _, _, err := env.run("", "chat", "--resume", "@last"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	th := env.threads[0]
	if th.ConversationID() != id {
		t.Errorf("ConversationID = %q, want %q", th.ConversationID(), id)
	}
	msgs := th.Messages()
	if len(msgs) != 2 || msgs[1].RunID != "run-old" {
		t.Errorf("resumed messages = %+v", msgs)
	}
	turns := th.History()
	if len(turns) != 1 || turns[0].Human != "old question" || turns[0].AI != "old answer" {
		t.Errorf("resumed history = %+v", turns)
	}
}

func TestChatResumeUnknown(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "old question", "old answer", "run-old")

	if _, _, err := env.run("", "chat", "--resume", "nothing like this"); err == nil {
		t.Error("expected resolve error")
	}
	if len(env.threads) != 0 {
		t.Error("RunChat should not be called")
	}
}

func TestChatResumeAndNewConflict(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := env.run("", "chat", "--resume", "1", "--new"); err == nil {
		t.Error("expected mutually exclusive flag error")
	}
}

func TestChatWithoutHistory(t *testing.T) {
	env := newTestEnv(t)
	env.deps.OpenStore = func() (*history.Store, error) { return nil, errors.New("disk full") }

	_, errOut, err := env.run("", "chat")
	if err != nil {
		t.Fatalf("chat should run without history: %v", err)
	}
	if len(env.threads) != 1 {
		t.Fatal("expected RunChat")
	}
	if errOut == "" {
		t.Error("expected a history warning")
	}
}

func TestChatClientError(t *testing.T) {
	env := newTestEnv(t)
	env.deps.NewClient = func(config.Config) (api.ChatClient, error) {
		return nil, errors.New("bad url")
	}

	if _, _, err := env.run("", "chat", "--new"); err == nil {
		t.Error("expected client error")
	}
	if len(env.threads) != 0 {
		t.Error("RunChat should not be called")
	}
}
