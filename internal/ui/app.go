package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/songbook/internal/config"
	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/editor"
	"github.com/five82/songbook/internal/prefs"
	"github.com/five82/songbook/internal/song"
)

// focusArea is the part of the screen receiving keys.
type focusArea int

const (
	focusList focusArea = iota
	focusSearch
	focusForm
)

// Options configures the UI.
type Options struct {
	Context    context.Context
	Controller *editor.Controller
	Config     *config.Config
	Prefs      prefs.Prefs
	PrefsPath  string
	Logger     *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	ctrl      *editor.Controller
	config    *config.Config
	prefs     prefs.Prefs
	prefsPath string
	logger    *slog.Logger

	// UI state
	theme  Theme
	keys   keyMap
	width  int
	height int
	ready  bool
	focus  focusArea
	now    time.Time

	// List state
	visible    []song.Record
	cursor     int
	cursorKey  string
	pendingKey string
	search     textinput.Model

	// Detail state
	viewport viewport.Model
	form     form

	// Overlays
	showHelp bool
	modal    Modal

	notice   string
	noticeAt time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	p := opts.Prefs.Normalize()

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search titles"
	search.CharLimit = TitleCharLimit
	search.SetValue(opts.Controller.SearchTerm())

	m := Model{
		ctx:       ctx,
		ctrl:      opts.Controller,
		config:    opts.Config,
		prefs:     p,
		prefsPath: prefsPath,
		logger:    logger.With("component", "ui"),
		theme:     GetTheme(p.Theme),
		keys:      DefaultKeyMap(),
		now:       time.Now(),
		search:    search,
		viewport:  viewport.New(0, 0),
		form:      newForm(),
	}
	m.refreshList()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(StatusTick)}
	if m.ctrl.Subscribed() {
		cmds = append(cmds, receiveCmd(m.ctx, m.ctrl))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		if m.notice != "" && m.now.Sub(m.noticeAt) > NoticeTTL {
			m.notice = ""
		}
		return m, tickCmd(StatusTick)

	case eventMsg:
		return m.handleEvent(msg)

	case streamEndMsg:
		m.logger.Info("subscription ended")
		return m, nil

	case writeDoneMsg:
		return m.handleWriteDone(editor.Completion(msg))

	case linkOpenedMsg:
		if msg.err != nil {
			m.logger.Warn("open link failed", "link", msg.target, "error", msg.err)
			m.setNotice("Could not open link: " + msg.err.Error())
			return m, nil
		}
		m.setNotice("Opened " + truncate(msg.target, 40))
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.logger.Warn("copy lyrics failed", "error", msg.err)
			m.setNotice("Clipboard unavailable: " + msg.err.Error())
			return m, nil
		}
		m.setNotice("Lyrics copied")
		return m, nil
	}

	switch m.focus {
	case focusForm:
		cmd := m.form.update(msg)
		return m, cmd
	case focusSearch:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m Model) handleEvent(msg eventMsg) (tea.Model, tea.Cmd) {
	if err := m.ctrl.HandleEvent(docstore.Event(msg)); err != nil {
		m.logger.Warn("subscription error", "error", err)
	}
	m.refreshList()
	m.refreshDetail()
	m.syncFocus()
	if m.ctrl.Subscribed() {
		return m, receiveCmd(m.ctx, m.ctrl)
	}
	return m, nil
}

func (m Model) handleWriteDone(done editor.Completion) (tea.Model, tea.Cmd) {
	res, err := m.ctrl.Complete(done)
	if err != nil {
		m.notice = ""
		m.syncFocus()
		return m, nil
	}
	if res.Stale {
		m.logger.Info("write finished after editor moved on", "op", res.Op.Kind.String(), "key", res.Record.Key)
	}

	switch res.Op.Kind {
	case editor.OpCreate:
		m.setNotice("Added " + truncate(res.Record.Title, 40))
		if !res.Stale {
			m.pendingKey = res.Record.Key
		}
	case editor.OpUpdate:
		m.setNotice("Saved " + truncate(res.Record.Title, 40))
	case editor.OpDelete:
		m.setNotice("Deleted " + truncate(res.Record.Title, 40))
	}
	m.refreshList()
	m.refreshDetail()
	m.syncFocus()
	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	if m.modal != nil {
		return m.handleModalKey(msg)
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch m.focus {
	case focusSearch:
		return m.handleSearchKey(msg)
	case focusForm:
		return m.handleFormKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	next, cmd, done := m.modal.Update(msg, m.keys)
	if !done {
		m.modal = next
		return m, cmd
	}
	m.modal = nil

	confirm, ok := next.(confirmDelete)
	if !ok {
		return m, cmd
	}
	op, err := m.ctrl.Remove(confirm)
	if errors.Is(err, editor.ErrNotConfirmed) {
		m.ctrl.ClearError()
		m.setNotice("Kept " + truncate(confirm.record.Title, 40))
		return m, cmd
	}
	if err != nil {
		return m, cmd
	}
	m.setNotice("Deleting...")
	return m, writeCmd(m.ctx, op)
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.clearSearch()
		return m, nil
	case key.Matches(msg, m.keys.Open):
		m.search.Blur()
		m.focus = focusList
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.ctrl.SearchTerm() {
		m.ctrl.SetSearchTerm(m.search.Value())
		m.refreshList()
	}
	return m, cmd
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.ctrl.Close()
		m.refreshDetail()
		m.syncFocus()
		return m, nil

	case key.Matches(msg, m.keys.Save):
		op, err := m.ctrl.Commit()
		if err != nil {
			return m, nil
		}
		m.setNotice("Saving...")
		return m, writeCmd(m.ctx, op)

	case key.Matches(msg, m.keys.NextField):
		cmd := m.form.cycle(1)
		return m, cmd

	case key.Matches(msg, m.keys.PrevField):
		cmd := m.form.cycle(-1)
		return m, cmd
	}

	if m.ctrl.Writing() {
		return m, nil
	}

	cmd := m.form.update(msg)
	field := m.form.field()
	value := m.form.value(field)
	if staged, ok := m.ctrl.Staged(); ok {
		if current, _ := staged.Get(field); current != value {
			_ = m.ctrl.SetField(string(field), value)
		}
	}
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		return m.reconnect()

	case key.Matches(msg, m.keys.Search):
		m.focus = focusSearch
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Escape):
		switch {
		case m.ctrl.State().Mode() == editor.ModeViewing:
			m.ctrl.Close()
			m.refreshDetail()
		case m.ctrl.SearchTerm() != "":
			m.clearSearch()
		default:
			m.ctrl.ClearError()
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(m.cursor - 1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(m.cursor + 1)
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(0)
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(len(m.visible) - 1)

	case key.Matches(msg, m.keys.Open):
		if r, ok := m.cursorRecord(); ok {
			_ = m.ctrl.SelectRecord(r.Key)
			m.refreshDetail()
		}

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfPageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfPageDown()

	case key.Matches(msg, m.keys.Add):
		if m.ctrl.State().Mode() == editor.ModeViewing {
			m.ctrl.Close()
		}
		if err := m.ctrl.StartCreate(); err != nil {
			return m, nil
		}
		cmd := m.openForm()
		return m, cmd

	case key.Matches(msg, m.keys.Edit):
		if m.ctrl.State().Mode() == editor.ModeClosed {
			if r, ok := m.cursorRecord(); ok {
				_ = m.ctrl.SelectRecord(r.Key)
			}
		}
		if err := m.ctrl.StartEdit(); err != nil {
			return m, nil
		}
		cmd := m.openForm()
		return m, cmd

	case key.Matches(msg, m.keys.Delete):
		r, ok := m.ctrl.Selected()
		if !ok {
			if r, ok = m.cursorRecord(); !ok {
				return m, nil
			}
			if err := m.ctrl.SelectRecord(r.Key); err != nil {
				return m, nil
			}
			m.refreshDetail()
		}
		m.modal = newConfirmDelete(r)
		return m, nil

	case key.Matches(msg, m.keys.OpenLink):
		r, ok := m.focusedRecord()
		if !ok {
			return m, nil
		}
		if strings.TrimSpace(r.Link) == "" {
			m.setNotice("No link for " + truncate(r.Title, 40))
			return m, nil
		}
		return m, openLinkCmd(strings.TrimSpace(r.Link))

	case key.Matches(msg, m.keys.Copy):
		r, ok := m.focusedRecord()
		if !ok {
			return m, nil
		}
		return m, copyCmd(r.Lyrics)
	}
	return m, nil
}

// reconnect restarts a subscription that ended.
func (m Model) reconnect() (tea.Model, tea.Cmd) {
	if m.ctrl.Subscribed() {
		return m, nil
	}
	if err := m.ctrl.Start(m.ctx); err != nil {
		return m, nil
	}
	m.setNotice("Reconnecting...")
	return m, receiveCmd(m.ctx, m.ctrl)
}

func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.prefs.Theme = m.theme.Name
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "path", m.prefsPath, "error", err)
	}
}

func (m *Model) clearSearch() {
	m.ctrl.ClearSearch()
	m.search.SetValue("")
	m.search.Blur()
	m.focus = focusList
	m.refreshList()
}

// openForm loads the staged values into the form and focuses it.
func (m *Model) openForm() tea.Cmd {
	staged, _ := m.ctrl.Staged()
	m.focus = focusForm
	return m.form.load(staged)
}

// syncFocus moves focus to where the editor state allows it.
func (m *Model) syncFocus() {
	switch m.ctrl.State().Mode() {
	case editor.ModeCreating, editor.ModeEditing:
		if m.focus != focusForm {
			m.focus = focusForm
			staged, _ := m.ctrl.Staged()
			m.form.load(staged)
		}
	default:
		if m.focus == focusForm {
			m.form.blur()
			m.focus = focusList
		}
	}
}

func (m *Model) setNotice(text string) {
	m.notice = text
	m.noticeAt = m.now
}

func (m *Model) resize() {
	listWidth, detailWidth, contentHeight := m.paneSizes()
	m.search.Width = max(listWidth-8, 10)
	m.form.setSize(detailWidth-4, contentHeight-2)
	m.refreshDetail()
}

// paneSizes splits the content area between list and detail panes.
func (m Model) paneSizes() (listWidth, detailWidth, contentHeight int) {
	contentHeight = max(m.height-2, 3) // header + command bar
	listWidth = m.width * m.prefs.ListWidth / 100
	if listWidth < LayoutMinListWidth {
		listWidth = min(LayoutMinListWidth, m.width)
	}
	detailWidth = max(m.width-listWidth, 0)
	return listWidth, detailWidth, contentHeight
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderPanes())
	return b.String()
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
