package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/diogo/streamchat/internal/api"
	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/history"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/session"
	"github.com/diogo/streamchat/internal/tui"
)

// testEnv wires fake dependencies around a temporary history store
type testEnv struct {
	deps    *Dependencies
	client  *api.MockChatClient
	store   *history.Store
	cfg     config.Config
	saved   []config.Config
	clip    []string
	threads []*session.Thread
	chatOpt []tui.Option
	clients []config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := history.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	env := &testEnv{
		client: &api.MockChatClient{},
		store:  store,
		cfg:    config.DefaultConfig(),
	}
	env.deps = &Dependencies{
		LoadConfig: func() (config.Config, error) { return env.cfg, nil },
		SaveConfig: func(cfg config.Config) error {
			env.saved = append(env.saved, cfg)
			return nil
		},
		NewClient: func(cfg config.Config) (api.ChatClient, error) {
			env.clients = append(env.clients, cfg)
			return env.client, nil
		},
		OpenStore: func() (*history.Store, error) { return store, nil },
		Clipboard: func(text string) error {
			env.clip = append(env.clip, text)
			return nil
		},
		RunChat: func(thread *session.Thread, opts ...tui.Option) error {
			env.threads = append(env.threads, thread)
			env.chatOpt = opts
			return nil
		},
	}
	return env
}

// run executes the command tree with args and returns stdout and stderr
func (e *testEnv) run(stdin string, args ...string) (string, string, error) {
	cmd := NewRootCmd(e.deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seed stores a finished exchange and returns its conversation id
func (e *testEnv) seed(t *testing.T, question, answer, runID string, sources ...models.Source) string {
	t.Helper()
	user := models.NewMessage(models.RoleUser, question)
	reply := models.NewMessage(models.RoleAssistant, answer)
	reply.RunID = runID
	reply.Sources = sources

	id := uuid.NewString()
	if err := e.store.SaveMessages(id, "http://localhost:8080", []models.Message{user, reply}); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}
	return id
}

func (e *testEnv) mustList(t *testing.T) []*history.Conversation {
	t.Helper()
	convs, err := e.store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	return convs
}
