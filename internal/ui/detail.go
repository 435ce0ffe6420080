package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/songbook/internal/editor"
	"github.com/five82/songbook/internal/song"
)

// form holds the inputs for the staged fields, in song.AllFields order.
type form struct {
	title  textinput.Model
	lyrics textarea.Model
	link   textinput.Model
	focus  int
}

func newForm() form {
	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = TitleCharLimit
	title.Prompt = ""

	lyrics := textarea.New()
	lyrics.Placeholder = "Lyrics"
	lyrics.ShowLineNumbers = false
	lyrics.CharLimit = 0

	link := textinput.New()
	link.Placeholder = "https://www.youtube.com/watch?v=..."
	link.CharLimit = LinkCharLimit
	link.Prompt = ""

	return form{title: title, lyrics: lyrics, link: link}
}

// load fills the inputs and focuses the title.
func (f *form) load(fields song.Fields) tea.Cmd {
	f.title.SetValue(fields.Title)
	f.lyrics.SetValue(fields.Lyrics)
	f.link.SetValue(fields.Link)
	f.title.CursorEnd()
	f.link.CursorEnd()
	f.focus = 0
	return f.applyFocus()
}

func (f *form) blur() {
	f.title.Blur()
	f.lyrics.Blur()
	f.link.Blur()
}

// cycle moves focus by delta fields, wrapping.
func (f *form) cycle(delta int) tea.Cmd {
	n := len(song.AllFields)
	f.focus = ((f.focus+delta)%n + n) % n
	return f.applyFocus()
}

func (f *form) applyFocus() tea.Cmd {
	f.blur()
	switch f.field() {
	case song.FieldLyrics:
		return f.lyrics.Focus()
	case song.FieldLink:
		return f.link.Focus()
	}
	return f.title.Focus()
}

func (f form) field() song.Field {
	return song.AllFields[f.focus]
}

func (f form) value(field song.Field) string {
	switch field {
	case song.FieldLyrics:
		return f.lyrics.Value()
	case song.FieldLink:
		return f.link.Value()
	}
	return f.title.Value()
}

// update forwards msg to the focused input.
func (f *form) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.field() {
	case song.FieldLyrics:
		f.lyrics, cmd = f.lyrics.Update(msg)
	case song.FieldLink:
		f.link, cmd = f.link.Update(msg)
	default:
		f.title, cmd = f.title.Update(msg)
	}
	return cmd
}

// setSize fits the inputs into a detail pane of the given inner size.
func (f *form) setSize(width, height int) {
	width = max(width, 10)
	f.title.Width = width - 1
	f.link.Width = width - 1
	f.lyrics.SetWidth(width)
	// title, link and lyrics labels plus their single-line inputs and spacing
	f.lyrics.SetHeight(max(height-8, FormLyricsMinHeight))
}

// refreshDetail loads the open song into the lyrics viewport.
func (m *Model) refreshDetail() {
	_, detailWidth, contentHeight := m.paneSizes()
	m.viewport.Width = max(detailWidth-4, 0)
	// borders plus title, link and blank line
	m.viewport.Height = max(contentHeight-2-3, 1)

	r, ok := m.ctrl.Selected()
	if !ok || m.ctrl.State().Mode() != editor.ModeViewing {
		m.viewport.SetContent("")
		return
	}
	lyrics := r.Lyrics
	if m.viewport.Width > 0 {
		lyrics = lipgloss.NewStyle().Width(m.viewport.Width).Render(lyrics)
	}
	m.viewport.SetContent(lyrics)
}

func (m Model) detailTitle() string {
	title := "Song"
	switch m.ctrl.State().Mode() {
	case editor.ModeCreating:
		title = "New song"
	case editor.ModeEditing:
		title = "Edit song"
	}
	if m.ctrl.Writing() {
		title += " · saving"
	}
	return title
}

// renderDetail renders the detail pane for the current editor mode.
func (m Model) renderDetail(width int, bgColor string) string {
	styles := m.theme.Styles().WithBackground(bgColor)
	bg := NewBgStyle(bgColor)

	switch s := m.ctrl.State().(type) {
	case editor.Viewing:
		var b strings.Builder
		b.WriteString(bg.Render(truncate(s.Record.Title, width), styles.AccentText.Bold(true)))
		b.WriteString("\n")
		if s.Record.Link != "" {
			b.WriteString(bg.Render(truncate(s.Record.Link, width), styles.InfoText))
		} else {
			b.WriteString(bg.Render("no link", styles.FaintText))
		}
		b.WriteString("\n\n")
		b.WriteString(m.viewport.View())
		return b.String()

	case editor.Creating, editor.Editing:
		return m.renderForm(styles, bg)
	}

	if r, ok := m.cursorRecord(); ok {
		return bg.Render(truncate(r.Title, width), styles.Text.Bold(true)) + "\n" +
			bg.Render(truncate(firstLine(r.Lyrics), width), styles.MutedText) + "\n\n" +
			bg.Render("enter to open · e to edit · d to delete", styles.FaintText)
	}
	return bg.Render("Select a song", styles.MutedText)
}

func (m Model) renderForm(styles Styles, bg BgStyle) string {
	label := func(f song.Field) string {
		style := styles.MutedText
		if m.focus == focusForm && m.form.field() == f {
			style = styles.AccentText.Bold(true)
		}
		text := f.Label()
		if f == song.FieldLink && !m.requireLink() {
			text += " (optional)"
		}
		return bg.Render(text, style)
	}

	var b strings.Builder
	b.WriteString(label(song.FieldTitle))
	b.WriteString("\n")
	b.WriteString(m.form.title.View())
	b.WriteString("\n\n")
	b.WriteString(label(song.FieldLyrics))
	b.WriteString("\n")
	b.WriteString(m.form.lyrics.View())
	b.WriteString("\n\n")
	b.WriteString(label(song.FieldLink))
	b.WriteString("\n")
	b.WriteString(m.form.link.View())
	return b.String()
}

func (m Model) requireLink() bool {
	return m.config != nil && m.config.RequireLink
}
