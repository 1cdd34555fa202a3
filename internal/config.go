package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/transport"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	API    APIConfig         `yaml:"api"`
	Store  StoreConfig       `yaml:"store"`
	Locale LocaleConfig      `yaml:"locale"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
//
// Editor is the command used to edit drafts in the collector; when empty the
// EDITOR environment variable is used, then vi.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Lang     string     `yaml:"lang"`
	Editor   string     `yaml:"editor"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Lang, validation.In(string(models.LangZH), string(models.LangEN))),
	)
}

// StartLang returns the language the session starts in.
func (c *ApplicationConfig) StartLang() models.Lang {
	lang, err := models.ParseLang(c.Lang)
	if err != nil {
		return models.DefaultLang
	}
	return lang
}

// APIConfig describes how to reach the health-knowledge backend.
// A zero Timeout leaves the HTTP client without a deadline.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

// StoreConfig holds the local SQLite database location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LocaleConfig points at an optional directory of catalog overrides
// (en.yaml, zh.yaml). Files there are reloaded on change.
type LocaleConfig struct {
	Dir string `yaml:"dir"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelWarn,
			Lang:     string(models.DefaultLang),
		},
		API: APIConfig{
			BaseURL: transport.DefaultBaseURL,
		},
		Store: StoreConfig{
			Path: "./healthlib.db",
		},
	}
}
