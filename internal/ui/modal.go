package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/songbook/internal/song"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// confirmDelete asks before a song is removed. Once closed it doubles as the
// editor.Confirmer for the delete, approving only the record it was opened
// for.
type confirmDelete struct {
	record   song.Record
	approved bool
}

func newConfirmDelete(r song.Record) confirmDelete {
	return confirmDelete{record: r}
}

func (c confirmDelete) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(km, keys.Yes):
		c.approved = true
		return c, nil, true
	case key.Matches(km, keys.No):
		return c, nil, true
	}
	return c, nil, false
}

// Confirm implements editor.Confirmer.
func (c confirmDelete) Confirm(r song.Record) bool {
	return c.approved && r.Key == c.record.Key
}

func (c confirmDelete) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.DangerText.Render("Delete song"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(fmt.Sprintf("Delete song %q?", truncate(c.record.Title, 40))))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning)).Render("y"))
	b.WriteString(styles.MutedText.Render(" delete   "))
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning)).Render("n/esc"))
	b.WriteString(styles.MutedText.Render(" keep"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Danger)).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
