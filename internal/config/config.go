package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Backend names a document store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendHTTP     Backend = "http"
)

// Backends lists the accepted backend names.
var Backends = []Backend{BackendMemory, BackendSQLite, BackendPostgres, BackendHTTP}

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	normalized := Backend(strings.ToLower(strings.TrimSpace(name)))
	for _, b := range Backends {
		if b == normalized {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q (expected memory|sqlite|postgres|http)", name)
}

// Config is the songbook configuration.
type Config struct {
	Backend      Backend
	Collection   string
	Locale       string
	RequireLink  bool
	LogDir       string
	LogLevel     string
	PollInterval time.Duration

	SQLitePath  string
	PostgresDSN string
	ServerURL   string
	ServerBind  string
}

const (
	defaultConfigPath  = "~/.config/songbook/config.toml"
	defaultLogDir      = "~/.local/share/songbook/logs"
	defaultSQLitePath  = "~/.local/share/songbook/songbook.db"
	defaultCollection  = "song"
	defaultLocale      = "ro"
	defaultServerBind  = "127.0.0.1:7488"
	defaultPollSeconds = 2
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Backend:      BackendSQLite,
		Collection:   defaultCollection,
		Locale:       defaultLocale,
		LogDir:       mustExpand(defaultLogDir),
		LogLevel:     "info",
		PollInterval: defaultPollSeconds * time.Second,
		SQLitePath:   mustExpand(defaultSQLitePath),
		ServerURL:    defaultServerBind,
		ServerBind:   defaultServerBind,
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Backend     string `toml:"backend"`
		Collection  string `toml:"collection"`
		Locale      string `toml:"locale"`
		RequireLink bool   `toml:"require_link"`
		LogDir      string `toml:"log_dir"`
		LogLevel    string `toml:"log_level"`
		PollSeconds int    `toml:"poll_seconds"`
		SQLite      struct {
			Path string `toml:"path"`
		} `toml:"sqlite"`
		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`
		HTTP struct {
			URL string `toml:"url"`
		} `toml:"http"`
		Server struct {
			Bind string `toml:"bind"`
		} `toml:"server"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if b := strings.TrimSpace(raw.Backend); b != "" {
		cfg.Backend, err = ParseBackend(b)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.Collection = orDefault(raw.Collection, defaultCollection)
	cfg.Locale = orDefault(raw.Locale, defaultLocale)
	cfg.RequireLink = raw.RequireLink
	cfg.LogDir = mustExpand(orDefault(raw.LogDir, defaultLogDir))
	cfg.LogLevel = strings.ToLower(orDefault(raw.LogLevel, "info"))
	if raw.PollSeconds > 0 {
		cfg.PollInterval = time.Duration(raw.PollSeconds) * time.Second
	}
	cfg.SQLitePath = mustExpand(orDefault(raw.SQLite.Path, defaultSQLitePath))
	cfg.PostgresDSN = strings.TrimSpace(raw.Postgres.DSN)
	cfg.ServerBind = orDefault(raw.Server.Bind, defaultServerBind)
	cfg.ServerURL = orDefault(raw.HTTP.URL, cfg.ServerBind)

	return cfg, nil
}

// LogPath returns the application log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/songbook.log")
	}
	return filepath.Join(c.LogDir, "songbook.log")
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
