package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/songbook/internal/editor"
	"github.com/five82/songbook/internal/song"
	"github.com/five82/songbook/internal/state"
)

// connection health shown in the status bar
type health int

const (
	healthLive health = iota
	healthSyncing
	healthOffline
)

func (m Model) health() health {
	snap := m.ctrl.Snapshot()
	switch {
	case !m.ctrl.Subscribed():
		return healthOffline
	case !snap.Loaded:
		return healthSyncing
	}
	return healthLive
}

// renderHeader renders the status bar: health, counts, last sync, mode and
// the last error or notice.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	sep := bg.Spaces(2)

	parts := []string{bg.Render("songbook", styles.Logo)}

	switch m.health() {
	case healthLive:
		parts = append(parts, bg.Render("● LIVE", styles.SuccessText))
	case healthSyncing:
		parts = append(parts, bg.Render("● SYNCING", styles.WarningText.Bold(true)))
	default:
		parts = append(parts, bg.Render("● OFFLINE", styles.DangerText))
	}

	snap := m.ctrl.Snapshot()
	parts = append(parts,
		bg.Render("Songs:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", len(snap.Records)), styles.Text))

	if !compact {
		parts = append(parts,
			bg.Render("Synced:", styles.MutedText)+bg.Space()+
				bg.Render(humanizeSince(m.now, snap.LastUpdated), styles.Text))
		if m.config != nil {
			parts = append(parts, bg.Render(string(m.config.Backend)+"/"+m.ctrl.Collection(), styles.FaintText))
		}
	}

	mode := m.ctrl.State().Mode().String()
	parts = append(parts, styles.ModeStyle(mode).Render(strings.ToUpper(mode)))

	if err := m.ctrl.LastError(); err != nil {
		parts = append(parts, bg.Render(truncate(errorLabel(err), max(m.width/2, 20)), styles.DangerText))
	} else if m.notice != "" {
		parts = append(parts, bg.Render(truncate(m.notice, max(m.width/3, 20)), styles.InfoText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		MaxWidth(m.width).
		Render(strings.Join(parts, sep))
}

// errorLabel renders an error for the status bar by kind.
func errorLabel(err error) string {
	var (
		ve *song.ValidationError
		se *state.SubscriptionError
		we *editor.RemoteWriteError
	)
	switch {
	case errors.As(err, &ve):
		names := make([]string, len(ve.Missing))
		for i, f := range ve.Missing {
			names[i] = strings.ToLower(f.Label())
		}
		return "Required: " + strings.Join(names, ", ")
	case errors.As(err, &se):
		return "Sync failed: " + se.Err.Error()
	case errors.As(err, &we):
		return "Could not " + we.Op.String() + " song: " + we.Err.Error()
	case errors.Is(err, editor.ErrWriteInFlight):
		return "Still saving, try again"
	}
	return err.Error()
}

// renderCommandBar renders the command hints for the focused area.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch {
	case m.focus == focusSearch:
		commands = []cmd{
			{"enter", "Keep filter"},
			{"esc", "Clear"},
		}
	case m.focus == focusForm:
		commands = []cmd{
			{"ctrl+s", "Save"},
			{"tab", "Next field"},
			{"esc", "Discard"},
		}
	case m.ctrl.State().Mode() == editor.ModeViewing:
		commands = []cmd{
			{"e", "Edit"},
			{"d", "Delete"},
			{"o", "Link"},
			{"y", "Copy"},
			{"j/k", "Next/Prev"},
			{"esc", "Close"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"enter", "Open"},
			{"a", "Add"},
			{"/", "Search"},
			{"j/k", "Navigate"},
			{"q", "Quit"},
			{"?", "More"},
		}
	}
	if m.focus == focusList && m.health() == healthOffline {
		commands = append([]cmd{{"r", "Reconnect"}}, commands...)
	}

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).MaxWidth(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
