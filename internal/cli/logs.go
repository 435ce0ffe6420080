package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/songbook/internal/app"
	"github.com/five82/songbook/internal/logtail"
)

func newLogsCmd(a *App) *cobra.Command {
	var (
		lines int
		level string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the end of the songbook log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(a.options())
			if err != nil {
				return err
			}
			out, err := logtail.Read(cfg.LogPath(), logtail.Options{
				Lines:    lines,
				MinLevel: app.ParseLevel(level),
			})
			if err != nil {
				return err
			}
			if len(out) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "no log entries in %s\n", cfg.LogPath())
				return nil
			}
			for _, line := range out {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines (0 for all)")
	cmd.Flags().StringVar(&level, "level", "info", "Minimum level (debug|info|warn|error)")
	return cmd
}
