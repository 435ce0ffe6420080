package cli

import (
	"github.com/spf13/cobra"

	"github.com/five82/songbook/internal/app"
)

func newServeCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured store over HTTP for remote songbooks",
		Long: "Serve exposes the configured memory, sqlite or postgres store at [server] bind.\n" +
			"Other songbooks connect to it with backend = \"http\".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Serve(cmd.Context(), a.options())
		},
	}
}
