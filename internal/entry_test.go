package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/healthlib/internal/events"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/testutil"
)

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.Store.Path = filepath.Join(t.TempDir(), "data", "healthlib.db")
	return cfg
}

func run(t *testing.T, cfg *Config, action Action) error {
	t.Helper()
	var logs strings.Builder
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Run(ctx, action, WithConfig(cfg), WithLogOutput(&logs))
}

func TestRun_RequiresConfig(t *testing.T) {
	err := Run(context.Background(), func(context.Context, *App) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "config is required") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRun_ActionErrorPropagates(t *testing.T) {
	b := testutil.NewBackend(t)
	boom := errors.New("boom")
	err := run(t, testConfig(t, b.URL), func(context.Context, *App) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRun_CreatesStoreDirectory(t *testing.T) {
	b := testutil.NewBackend(t)
	cfg := testConfig(t, b.URL)
	if err := run(t, cfg, func(context.Context, *App) error { return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		t.Errorf("store file not created: %v", err)
	}
}

func TestRun_WiresBrowse(t *testing.T) {
	b := testutil.NewBackend(t)
	err := run(t, testConfig(t, b.URL), func(ctx context.Context, app *App) error {
		c := app.NewBrowse()
		if err := c.Init(ctx, app.Locale.Current()); err != nil {
			return err
		}
		s := c.Snapshot()
		if len(s.Categories) == 0 || len(s.Results) == 0 {
			t.Errorf("empty browse state: %d categories, %d results", len(s.Categories), len(s.Results))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	req, ok := b.LastRequest(testutil.RouteBrowse)
	if !ok {
		t.Fatal("browse endpoint not called")
	}
	if got := req.Query.Get("lang"); got != "zh" {
		t.Errorf("lang = %q, want zh", got)
	}
}

func TestRun_ToggleAnnouncesLocale(t *testing.T) {
	b := testutil.NewBackend(t)
	err := run(t, testConfig(t, b.URL), func(ctx context.Context, app *App) error {
		sub := app.Events.Subscribe()
		defer app.Events.Unsubscribe(sub)

		if got := app.Locale.Toggle(); got != models.LangEN {
			t.Errorf("Toggle = %q, want en", got)
		}
		select {
		case ev := <-sub:
			if ev.Type != events.LocaleChanged || ev.Data != models.LangEN {
				t.Errorf("event = %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Error("no locale event")
		}
		if got := app.T("chat.error"); !strings.HasPrefix(got, "Sorry") {
			t.Errorf("T(chat.error) = %q", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_AssistantResumesSession(t *testing.T) {
	b := testutil.NewBackend(t)
	cfg := testConfig(t, b.URL)

	var sessionID string
	err := run(t, cfg, func(ctx context.Context, app *App) error {
		id, err := app.Store.NewSession()
		if err != nil {
			return err
		}
		sessionID = id
		chat, err := app.NewAssistant(id)
		if err != nil {
			return err
		}
		return chat.Submit(ctx, models.LangEN, "How much sleep do I need?")
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	err = run(t, cfg, func(ctx context.Context, app *App) error {
		chat, err := app.NewAssistant(sessionID)
		if err != nil {
			return err
		}
		s := chat.Snapshot()
		if len(s.Transcript) != 2 {
			t.Fatalf("transcript len = %d, want 2", len(s.Transcript))
		}
		if s.Transcript[0].Role != models.RoleUser || s.Transcript[1].Role != models.RoleAssistant {
			t.Errorf("roles = %q, %q", s.Transcript[0].Role, s.Transcript[1].Role)
		}
		if s.ConversationID == "" {
			t.Error("conversation id not restored")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestRun_LocaleOverrides(t *testing.T) {
	b := testutil.NewBackend(t)
	cfg := testConfig(t, b.URL)
	cfg.App.Lang = "en"
	cfg.Locale.Dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.Locale.Dir, "en.yaml"), []byte("chat.error: Try again later\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := run(t, cfg, func(ctx context.Context, app *App) error {
		if got := app.T("chat.error"); got != "Try again later" {
			t.Errorf("T(chat.error) = %q", got)
		}
		if got := app.T("nav.browse"); got != "Browse" {
			t.Errorf("T(nav.browse) = %q", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
