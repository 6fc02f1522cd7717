package commands

import (
	"github.com/atotto/clipboard"

	"github.com/diogo/streamchat/internal/api"
	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/history"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/markdown"
	"github.com/diogo/streamchat/internal/session"
	"github.com/diogo/streamchat/internal/tui"
)

// Dependencies holds the external dependencies for the commands.
// Tests replace them to avoid the network, the terminal and the home
// directory.
type Dependencies struct {
	LoadConfig func() (config.Config, error)
	SaveConfig func(config.Config) error

	// NewClient builds the service client for a configuration
	NewClient func(cfg config.Config) (api.ChatClient, error)

	// OpenStore opens the conversation history
	OpenStore func() (*history.Store, error)

	Clipboard func(text string) error

	RunChat            func(thread *session.Thread, opts ...tui.Option) error
	SelectConversation func(store tui.HistoryStore, baseURL string) (tui.HistorySelectorResult, error)

	// InitLogging installs the log sink; nil leaves logging discarded
	InitLogging func(cfg config.Config) error
}

// NewDependencies creates Dependencies with the production implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		LoadConfig:         config.LoadConfig,
		SaveConfig:         config.SaveConfig,
		NewClient:          newClient,
		OpenStore:          history.DefaultStore,
		Clipboard:          clipboard.WriteAll,
		RunChat:            tui.RunChat,
		SelectConversation: tui.RunHistorySelector,
		InitLogging:        initLogging,
	}
}

func newClient(cfg config.Config) (api.ChatClient, error) {
	client, err := api.NewClient(
		api.WithBaseURL(cfg.BaseURL),
		api.WithTimeout(cfg.Timeout()),
		api.WithFormatter(markdown.NewFormatter()),
		api.WithLogger(logging.With("api")),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func initLogging(cfg config.Config) error {
	path, err := config.GetLogPath(cfg)
	if err != nil {
		return err
	}
	return logging.Init(path, logging.ParseLevel(cfg.LogLevel))
}
