package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/songbook/internal/editor"
	"github.com/five82/songbook/internal/song"
)

// refreshList re-projects the mirror and keeps the cursor on the same song
// when it is still visible. A song created from this session takes the
// cursor once it shows up in a snapshot.
func (m *Model) refreshList() {
	m.visible = m.ctrl.Visible()
	if len(m.visible) == 0 {
		m.cursor = 0
		return
	}

	if m.pendingKey != "" {
		for i, r := range m.visible {
			if r.Key == m.pendingKey {
				m.cursor, m.cursorKey, m.pendingKey = i, r.Key, ""
				return
			}
		}
	}

	if m.cursorKey != "" {
		for i, r := range m.visible {
			if r.Key == m.cursorKey {
				m.cursor = i
				return
			}
		}
	}

	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.cursorKey = m.visible[m.cursor].Key
}

// moveCursor selects row i, clamped. While a song is open the detail pane
// follows the cursor.
func (m *Model) moveCursor(i int) {
	if len(m.visible) == 0 {
		return
	}
	i = max(0, min(i, len(m.visible)-1))
	m.cursor = i
	m.cursorKey = m.visible[i].Key
	if m.ctrl.State().Mode() == editor.ModeViewing {
		_ = m.ctrl.SelectRecord(m.cursorKey)
		m.refreshDetail()
	}
}

func (m Model) cursorRecord() (song.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return song.Record{}, false
	}
	return m.visible[m.cursor], true
}

// focusedRecord is the open song, or the one under the cursor.
func (m Model) focusedRecord() (song.Record, bool) {
	if r, ok := m.ctrl.Selected(); ok {
		return r, true
	}
	return m.cursorRecord()
}

// renderPanes renders the split layout (list + detail).
func (m Model) renderPanes() string {
	listWidth, detailWidth, contentHeight := m.paneSizes()

	listFocused := m.focus != focusForm
	listBg := m.theme.SurfaceAlt
	if listFocused {
		listBg = m.theme.FocusBg
	}
	listContent := m.renderList(listWidth-2, contentHeight-2, listBg)
	listPane := m.renderTitledBox(m.listTitle(), listContent, listWidth, contentHeight, listFocused)

	if detailWidth < 4 {
		return listPane
	}
	detailFocused := m.focus == focusForm
	detailBg := m.theme.SurfaceAlt
	if detailFocused {
		detailBg = m.theme.FocusBg
	}
	detailContent := m.renderDetail(detailWidth-4, detailBg)
	detailPane := m.renderTitledBox(m.detailTitle(), detailContent, detailWidth, contentHeight, detailFocused)

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// listTitle returns the list pane title with the match count while searching.
func (m Model) listTitle() string {
	total := len(m.ctrl.Snapshot().Records)
	if m.ctrl.SearchTerm() == "" {
		return fmt.Sprintf("Songs (%d)", len(m.visible))
	}
	return fmt.Sprintf("Songs (%d/%d)", len(m.visible), total)
}

// renderList renders the search line and the numbered rows.
func (m Model) renderList(width, height int, bgColor string) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(bgColor)

	var lines []string
	switch {
	case m.focus == focusSearch:
		lines = append(lines, m.search.View())
	case m.ctrl.SearchTerm() != "":
		lines = append(lines, bg.Render("/ "+truncate(m.ctrl.SearchTerm(), width-2), styles.AccentText))
	default:
		lines = append(lines, bg.Render("/ to search", styles.FaintText))
	}

	if len(m.visible) == 0 {
		msg := "No songs yet. Press a to add one."
		switch {
		case m.ctrl.SearchTerm() != "":
			msg = "No titles match."
		case !m.ctrl.Snapshot().Loaded:
			msg = "Loading songs..."
		}
		lines = append(lines, "", bg.Render(msg, styles.MutedText))
		return strings.Join(lines, "\n")
	}

	start, end := listWindow(m.cursor, len(m.visible), height-1)
	for i := start; i < end; i++ {
		selected := i == m.cursor
		rowBg := bgColor
		if selected {
			rowBg = m.theme.SelectionBg
		}
		content := m.formatRow(i, m.visible[i], width, rowBg, selected)
		lines = append(lines, lipgloss.NewStyle().
			Background(lipgloss.Color(rowBg)).
			Width(width).
			Render(content))
	}
	return strings.Join(lines, "\n")
}

// formatRow formats a list row as "N. Title", marking songs with a link.
// Selected rows use SelectionText for every part to keep contrast.
func (m Model) formatRow(i int, r song.Record, width int, bgColor string, selected bool) string {
	bg := NewBgStyle(bgColor)

	num := fmt.Sprintf("%d.", i+1)
	marker := ""
	if r.Link != "" {
		marker = " ♪"
	}
	titleWidth := max(width-len(num)-len([]rune(marker))-2, 4)

	var numStyle, titleStyle, markStyle lipgloss.Style
	if selected {
		selText := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		numStyle, titleStyle, markStyle = selText, selText.Bold(true), selText
	} else {
		styles := m.theme.Styles()
		numStyle, titleStyle, markStyle = styles.MutedText, styles.Text, styles.InfoText
	}

	return bg.Render(num, numStyle) + bg.Space() +
		bg.Render(truncate(r.Title, titleWidth), titleStyle) +
		bg.Render(marker, markStyle)
}

// renderTitledBox renders content in a box with the title embedded in the top border:
// ┌─── Title ───┐
// Focused boxes use BorderFocus and FocusBg.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	borderColorStr, bgColorStr := m.theme.Border, m.theme.SurfaceAlt
	if focused {
		borderColorStr, bgColorStr = m.theme.BorderFocus, m.theme.FocusBg
	}
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 0)
	title = truncate(title, max(innerWidth-4, 1))
	titleLen := lipgloss.Width(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(lipgloss.Color(bgColorStr))
	contentLines := strings.Split(content, "\n")
	boxHeight := max(height-2, 0)

	rows := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		rows = append(rows,
			bg.Render("│", borderStyle)+
				contentStyle.Render(line)+
				bg.Render("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + bottomBorder
}
