// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/healthlib/internal/assistant"
	"github.com/starford/healthlib/internal/browse"
	"github.com/starford/healthlib/internal/collector"
	"github.com/starford/healthlib/internal/events"
	"github.com/starford/healthlib/internal/locale"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/store"
	"github.com/starford/healthlib/internal/transport"
)

// App is the wired set of long-lived components handed to an Action.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Client  *transport.Client
	Store   *store.DB
	Catalog *locale.Catalog
	Locale  *locale.State
	Events  *events.Broker
}

// Action is the work a command performs once the application is wired.
// Its context is cancelled on SIGINT/SIGTERM.
type Action func(ctx context.Context, app *App) error

// NewBrowse builds a browse controller publishing to the app's broker.
func (a *App) NewBrowse(opts ...browse.Option) *browse.Controller {
	opts = append([]browse.Option{
		browse.WithPublisher(a.Events),
		browse.WithLogger(a.Logger),
	}, opts...)
	return browse.New(a.Client, a.Catalog, opts...)
}

// NewAssistant builds an assistant controller that records every message of
// sessionID and resumes from its stored transcript.
func (a *App) NewAssistant(sessionID string) (*assistant.Controller, error) {
	transcript, err := a.Store.Messages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	convID, err := a.Store.ConversationID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load conversation id: %w", err)
	}
	return assistant.New(a.Client, a.Catalog,
		assistant.WithPublisher(a.Events),
		assistant.WithLogger(a.Logger),
		assistant.WithRecorder(a.Store, sessionID),
		assistant.WithHistory(transcript, convID),
	), nil
}

// NewCollector builds a collector controller whose draft survives restarts.
func (a *App) NewCollector() *collector.Controller {
	return collector.New(a.Client, a.Catalog,
		collector.WithPublisher(a.Events),
		collector.WithLogger(a.Logger),
		collector.WithDraftStore(a.Store),
	)
}

// T translates key into the current language.
func (a *App) T(key string) string {
	return a.Catalog.T(a.Locale.Current(), key)
}

// Run wires the application from the given options and executes action.
func Run(ctx context.Context, action Action, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if action == nil {
		return fmt.Errorf("action is required")
	}

	cfg := app.config

	// Logs go to stderr so command output on stdout stays clean.
	logOutput := app.logOutput
	if logOutput == nil {
		logOutput = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("api_base_url", cfg.API.BaseURL),
		slog.String("store_path", cfg.Store.Path),
		slog.String("locale_dir", cfg.Locale.Dir),
		slog.String("lang", string(cfg.App.StartLang())),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	catalog, err := locale.NewCatalog()
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	if cfg.Locale.Dir != "" {
		if err := catalog.LoadDir(cfg.Locale.Dir); err != nil {
			logger.Warn("locale overrides not loaded", slog.String("error", err.Error()))
		}
	}

	httpClient := app.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}
	client := transport.New(cfg.API.BaseURL,
		transport.WithHTTPClient(httpClient),
		transport.WithLogger(logger),
	)

	broker := events.NewBroker()
	defer broker.Close()

	state := locale.NewState(cfg.App.StartLang())
	state.OnChange(func(lang models.Lang) {
		broker.Publish(events.Event{Type: events.LocaleChanged, Data: lang})
	})

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		Store:   db,
		Catalog: catalog,
		Locale:  state,
		Events:  broker,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)

	// Hot-reload catalog overrides.
	if cfg.Locale.Dir != "" {
		g.Go(func() error {
			err := catalog.Watch(gCtx, cfg.Locale.Dir, logger, func() {
				broker.Publish(events.Event{Type: events.LocaleChanged, Data: state.Current()})
			})
			if err != nil {
				logger.Warn("locale watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return action(gCtx, a)
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Application stopped")
	return nil
}
