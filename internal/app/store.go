package app

import (
	"context"
	"fmt"
	"io"

	"github.com/five82/songbook/internal/config"
	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/docstore/memory"
	"github.com/five82/songbook/internal/docstore/postgres"
	"github.com/five82/songbook/internal/docstore/remote"
	"github.com/five82/songbook/internal/docstore/sqlite"
)

// OpenStore opens the backend selected by cfg. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config) (docstore.Store, func() error, error) {
	var (
		store docstore.Store
		err   error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		store = memory.New()
	case config.BackendSQLite:
		store, err = sqlite.Open(ctx, cfg.SQLitePath, cfg.PollInterval)
	case config.BackendPostgres:
		store, err = postgres.Open(ctx, cfg.PostgresDSN)
	case config.BackendHTTP:
		store, err = remote.NewClient(cfg.ServerURL, cfg.PollInterval)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	closeFn := func() error { return nil }
	if c, ok := store.(io.Closer); ok {
		closeFn = c.Close
	}
	return store, closeFn, nil
}
