// Package cli wires the songbook commands. With no subcommand the root
// command starts the TUI; the subcommands are scriptable and share the same
// controller the TUI uses.
package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/songbook/internal/app"
	"github.com/five82/songbook/internal/editor"
)

// App carries the persistent flags.
type App struct {
	ConfigPath string
	PrefsPath  string
	Backend    string
	Poll       int
}

func (a *App) options() app.Options {
	return app.Options{
		ConfigPath: a.ConfigPath,
		PrefsPath:  a.PrefsPath,
		Backend:    a.Backend,
		PollEvery:  a.Poll,
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &App{}

	cmd := &cobra.Command{
		Use:          "songbook",
		Short:        "Shared songbook editor (TUI + CLI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  songbook

  # Scriptable commands
  songbook list --search grace
  songbook add --title "Amazing Grace" --lyrics "Amazing grace, how sweet the sound"
  songbook delete 3f2a... --yes

  # Share a local sqlite songbook over HTTP
  songbook serve --backend sqlite
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), a.options())
		},
	}

	cmd.PersistentFlags().StringVar(&a.ConfigPath, "config", envOr("SONGBOOK_CONFIG", ""), "Path to config.toml (default ~/.config/songbook/config.toml)")
	cmd.PersistentFlags().StringVar(&a.PrefsPath, "prefs", envOr("SONGBOOK_PREFS", ""), "Path to prefs.toml (default ~/.config/songbook/prefs.toml)")
	cmd.PersistentFlags().StringVar(&a.Backend, "backend", envOr("SONGBOOK_BACKEND", ""), "Store backend (memory|sqlite|postgres|http)")
	cmd.PersistentFlags().IntVar(&a.Poll, "poll", 0, "Refresh interval in seconds for polling backends (default 2)")

	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newLogsCmd(a))

	return cmd
}

// Execute runs the root command with ctx and returns a process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrf("songbook: %v\n", err)
		return 1
	}
	return 0
}

// session is a controller with a loaded mirror, for one command.
type session struct {
	ctrl  *editor.Controller
	close func()
}

func openSession(ctx context.Context, a *App) (*session, error) {
	cfg, err := app.LoadConfig(a.options())
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := app.OpenLog(cfg)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	ctrl := app.NewController(store, cfg, logger)
	s := &session{
		ctrl: ctrl,
		close: func() {
			ctrl.Stop()
			_ = closeStore()
			_ = closeLog()
		},
	}
	if err := ctrl.Start(ctx); err != nil {
		s.close()
		return nil, err
	}
	if err := ctrl.Sync(ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
