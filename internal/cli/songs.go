package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/songbook/internal/editor"
	"github.com/five82/songbook/internal/song"
)

type listItem struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Lyrics      string `json:"lyrics"`
	YoutubeLink string `json:"youtubeLink,omitempty"`
}

func newListCmd(a *App) *cobra.Command {
	var (
		search  string
		asJSON  bool
		showKey bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List songs sorted by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer s.close()

			s.ctrl.SetSearchTerm(search)
			records := s.ctrl.Visible()
			out := cmd.OutOrStdout()
			if asJSON {
				items := make([]listItem, 0, len(records))
				for _, r := range records {
					items = append(items, listItem{Key: r.Key, Title: r.Title, Lyrics: r.Lyrics, YoutubeLink: r.Link})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			for i, r := range records {
				if showKey {
					fmt.Fprintf(out, "%d. %s  [%s]\n", i+1, r.Title, r.Key)
					continue
				}
				fmt.Fprintf(out, "%d. %s\n", i+1, r.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Only songs whose title contains this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&showKey, "keys", false, "Show document keys")
	return cmd
}

func newAddCmd(a *App) *cobra.Command {
	var fields song.Fields
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a song",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.ctrl.StartCreate(); err != nil {
				return err
			}
			for _, f := range song.AllFields {
				v, _ := fields.Get(f)
				if err := s.ctrl.SetField(string(f), v); err != nil {
					return err
				}
			}
			op, err := s.ctrl.Commit()
			if err != nil {
				return err
			}
			res, err := s.ctrl.Execute(cmd.Context(), op)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Record.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&fields.Title, "title", "", "Song title (required)")
	cmd.Flags().StringVar(&fields.Lyrics, "lyrics", "", "Song lyrics (required)")
	cmd.Flags().StringVar(&fields.Link, "link", "", "YouTube link")
	return cmd
}

func newDeleteCmd(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.ctrl.SelectRecord(strings.TrimSpace(args[0])); err != nil {
				return err
			}
			var confirmer editor.Confirmer = promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			if yes {
				confirmer = editor.ConfirmFunc(func(song.Record) bool { return true })
			}
			op, err := s.ctrl.Remove(confirmer)
			if err != nil {
				return err
			}
			res, err := s.ctrl.Execute(cmd.Context(), op)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", res.Record.Title)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// promptConfirmer asks on out and reads a y/yes answer from in.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(r song.Record) bool {
	fmt.Fprintf(p.out, "Delete song %q? [y/N] ", r.Title)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
