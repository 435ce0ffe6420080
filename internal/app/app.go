package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/five82/songbook/internal/config"
	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/editor"
	"github.com/five82/songbook/internal/prefs"
	"github.com/five82/songbook/internal/server"
	"github.com/five82/songbook/internal/song"
	"github.com/five82/songbook/internal/ui"
)

// Options configure the songbook application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/songbook/prefs.toml
	Backend    string // overrides the configured backend when set
	PollEvery  int    // seconds; overrides poll_seconds when positive
}

// LoadConfig reads the config file and applies command-line overrides.
func LoadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if b := strings.TrimSpace(opts.Backend); b != "" {
		cfg.Backend, err = config.ParseBackend(b)
		if err != nil {
			return config.Config{}, err
		}
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}
	return cfg, nil
}

// NewController builds the editor controller for cfg. The subscription is
// not started.
func NewController(store docstore.Store, cfg config.Config, logger *slog.Logger) *editor.Controller {
	return editor.New(store, editor.Options{
		Collection:  cfg.Collection,
		RequireLink: cfg.RequireLink,
		Collator:    song.NewCollator(cfg.Locale),
		Logger:      logger,
	})
}

// Run boots the TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := OpenLog(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	logger.Info("songbook starting", "backend", cfg.Backend, "collection", cfg.Collection)

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("open store failed", "backend", cfg.Backend, "error", err)
		return err
	}
	defer func() { _ = closeStore() }()

	ctrl := NewController(store, cfg, logger)
	defer ctrl.Stop()

	// A failed start is kept as the controller's last error and shown in the
	// status bar, where the user can retry.
	_ = ctrl.Start(ctx)

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	return ui.Run(ui.Options{
		Context:    ctx,
		Controller: ctrl,
		Config:     &cfg,
		Prefs:      userPrefs,
		PrefsPath:  opts.PrefsPath,
		Logger:     logger,
	})
}

// Serve exposes the configured backend over HTTP until ctx is cancelled.
func Serve(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Backend == config.BackendHTTP {
		return errors.New("serve needs a local backend (memory, sqlite or postgres), not http")
	}

	logger := NewLogger(os.Stderr, cfg.LogLevel)
	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	srv, err := server.New(store, server.Config{
		Addr:    cfg.ServerBind,
		Backend: string(cfg.Backend),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
