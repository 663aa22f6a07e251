package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgkksql/internal/app"
	"github.com/joacominatel/pgkksql/internal/config"
	"github.com/joacominatel/pgkksql/internal/logger"
	"github.com/joacominatel/pgkksql/internal/tui/connection"
	"github.com/joacominatel/pgkksql/internal/tui/editor"
	"github.com/joacominatel/pgkksql/internal/tui/explorer"
	"github.com/joacominatel/pgkksql/internal/tui/results"
	"github.com/joacominatel/pgkksql/internal/tui/statusbar"
	"github.com/joacominatel/pgkksql/internal/tui/theme"
)

const (
	connectTimeout  = 10 * time.Second
	metadataTimeout = 15 * time.Second
)

// Pane identifies a focusable area.
type Pane int

const (
	PaneExplorer Pane = iota
	PaneEditor
	PaneResults
)

func (p Pane) String() string {
	switch p {
	case PaneExplorer:
		return "explorer"
	case PaneEditor:
		return "editor"
	case PaneResults:
		return "results"
	default:
		return "unknown"
	}
}

// AppMode tracks the current UI state.
type AppMode int

const (
	ModeConnection AppMode = iota // connection dialog
	ModeMain                      // main TUI
)

// ProfileStore persists connection profiles.
type ProfileStore interface {
	Load() []config.Profile
	Upsert(p config.Profile) ([]config.Profile, error)
	Delete(name string) ([]config.Profile, error)
}

// queryDoneMsg carries a finished query back onto the UI loop.
type queryDoneMsg struct {
	outcome app.Outcome
}

// prompt is a yes/no question blocking the rest of the UI.
type prompt struct {
	text string
	yes  func(m Model) (Model, tea.Cmd)
}

// Model is the top-level bubbletea model orchestrating all components.
type Model struct {
	ctx        context.Context
	service    *app.Service
	store      ProfileStore
	dialog     connection.Model
	explorer   explorer.Model
	editor     editor.Model
	results    results.Model
	statusbar  statusbar.Model
	activePane Pane
	mode       AppMode
	width      int
	height     int
	showHelp   bool
	confirm    *prompt
	autoConn   *config.Profile
}

// NewModel creates the top-level model. When autoConnect is set the app
// connects to it on start; otherwise the connection dialog is shown.
func NewModel(service *app.Service, store ProfileStore, autoConnect *config.Profile) Model {
	var profiles []config.Profile
	if store != nil {
		profiles = store.Load()
	}

	return Model{
		ctx:        context.Background(),
		service:    service,
		store:      store,
		dialog:     connection.New(profiles),
		explorer:   explorer.New(),
		editor:     editor.New(service.Completer()),
		results:    results.New(service.Grid()),
		statusbar:  statusbar.New(),
		activePane: PaneExplorer,
		mode:       ModeConnection,
		autoConn:   autoConnect,
	}
}

// Mode returns the current UI state.
func (m Model) Mode() AppMode {
	return m.mode
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}

	if m.autoConn != nil {
		p := *m.autoConn
		cmds = append(cmds, func() tea.Msg { return connection.ConnectMsg{Profile: p} })
	}

	return tea.Batch(cmds...)
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}

		if msg.String() == "ctrl+c" {
			return m.quit()
		}

		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch m.mode {
		case ModeConnection:
			var cmd tea.Cmd
			m.dialog, cmd = m.dialog.Update(msg)
			return m, cmd
		case ModeMain:
			return m.updateMain(msg)
		}

	case connection.ConnectMsg:
		if m.service.Grid().HasEdits() {
			m.ask(discardText(m.service.Grid().EditCount()), func(m Model) (Model, tea.Cmd) {
				return m.connect(msg.Profile)
			})
			return m, nil
		}
		return m.connect(msg.Profile)

	case connection.SaveMsg:
		profiles, err := m.store.Upsert(msg.Profile)
		if err != nil {
			m.dialog.SetError("Could not save connection: " + err.Error())
			return m, nil
		}
		m.dialog.SetProfiles(profiles, msg.Profile.Name)
		return m, nil

	case connection.DeleteMsg:
		profiles, err := m.store.Delete(msg.Name)
		if err != nil {
			m.dialog.SetError("Could not delete connection: " + err.Error())
			return m, nil
		}
		m.dialog.SetProfiles(profiles, "")
		return m, nil

	case connection.CloseMsg:
		if m.service.Connected() {
			m.mode = ModeMain
		}
		return m, nil

	case explorer.ExpandRequestMsg:
		m.expand(msg)
		return m, nil

	case explorer.OpenTableMsg:
		if m.service.Grid().HasEdits() {
			m.ask(discardText(m.service.Grid().EditCount()), func(m Model) (Model, tea.Cmd) {
				return m.openTable(msg, confirmed)
			})
			return m, nil
		}
		return m.openTable(msg, nil)

	case editor.ExecuteQueryMsg:
		req := app.Request{Query: msg.Query}
		if m.service.NeedsConfirm(msg.Query) {
			m.ask(discardText(m.service.Grid().EditCount()), func(m Model) (Model, tea.Cmd) {
				return m.execute(req, confirmed)
			})
			return m, nil
		}
		return m.execute(req, nil)

	case queryDoneMsg:
		out := m.service.Apply(m.ctx, msg.outcome)
		m.results.Refresh()
		if out.Kind == app.OutcomeTable {
			m.setFocus(PaneResults)
		}
		m.syncStatus()
		return m, nil

	case results.CellEditedMsg:
		m.syncStatus()
		return m, nil

	case results.ShowTableMsg:
		if m.service.ShowEditedTable() {
			m.results.Refresh()
		}
		m.syncStatus()
		return m, nil

	case results.StatusNotifyMsg:
		m.statusbar.SetMessage(msg.Message)
		return m, nil
	}

	if m.mode == ModeMain {
		return m.updateComponents(msg)
	}
	var cmd tea.Cmd
	m.dialog, cmd = m.dialog.Update(msg)
	return m, cmd
}

func confirmed(int) bool { return true }

func discardText(n int) string {
	if n == 1 {
		return "Discard 1 pending edit?"
	}
	return fmt.Sprintf("Discard %d pending edits?", n)
}

func (m *Model) ask(text string, yes func(m Model) (Model, tea.Cmd)) {
	m.confirm = &prompt{text: text, yes: yes}
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.confirm
	switch msg.String() {
	case "y", "Y", "enter":
		m.confirm = nil
		return p.yes(m)
	case "n", "N", "esc":
		m.confirm = nil
		m.statusbar.SetMessage("Pending edits kept")
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.service.CanQuit() {
		return m, tea.Quit
	}
	n := m.service.Grid().EditCount()
	m.ask(fmt.Sprintf("Quit and discard %d pending edit(s)?", n), func(m Model) (Model, tea.Cmd) {
		return m, tea.Quit
	})
	return m, nil
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.results.Editing() {
		return m.updateComponents(msg)
	}

	switch msg.String() {
	case "ctrl+s":
		m.commit()
		return m, nil
	case "ctrl+r":
		m.rollback()
		return m, nil
	case "ctrl+o":
		m.mode = ModeConnection
		return m, nil
	}

	if m.activePane == PaneEditor {
		switch msg.String() {
		case "tab":
			if !m.editor.Complete() {
				m.cyclePane()
			}
			return m, nil
		case "shift+tab":
			m.cyclePaneBack()
			return m, nil
		}
		return m.updateComponents(msg)
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "?":
		m.showHelp = true
		return m, nil
	case "tab":
		m.cyclePane()
		return m, nil
	case "shift+tab":
		m.cyclePaneBack()
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.activePane {
	case PaneExplorer:
		m.explorer, cmd = m.explorer.Update(msg)
	case PaneEditor:
		m.editor, cmd = m.editor.Update(msg)
	case PaneResults:
		m.results, cmd = m.results.Update(msg)
	}

	return m, cmd
}

// connect opens the session on the UI loop; the session is not shared with
// any other goroutine while no query runs.
func (m Model) connect(p config.Profile) (Model, tea.Cmd) {
	ctx, cancel := context.WithTimeout(m.ctx, connectTimeout)
	defer cancel()

	if err := m.service.Connect(ctx, p); err != nil {
		logger.Warn("Connection failed", "profile", p.Name, "error", err)
		m.mode = ModeConnection
		m.dialog.SetError(err.Error())
		m.statusbar.SetConnected(false, "")
		m.syncStatus()
		return m, nil
	}

	m.mode = ModeMain
	m.dialog.SetError("")
	m.results.Refresh()
	m.loadDatabases()
	m.setFocus(PaneExplorer)
	m.layout()
	m.syncStatus()
	return m, nil
}

func (m *Model) loadDatabases() {
	ctx, cancel := context.WithTimeout(m.ctx, metadataTimeout)
	defer cancel()

	m.explorer.Reset()
	names, err := m.service.Databases(ctx)
	if err != nil {
		m.statusbar.SetMessage("Failed to load databases: " + err.Error())
		return
	}
	m.explorer.SetDatabases(names)
}

func (m *Model) expand(req explorer.ExpandRequestMsg) {
	ctx, cancel := context.WithTimeout(m.ctx, metadataTimeout)
	defer cancel()

	var err error
	switch req.Kind {
	case explorer.NodeDatabase:
		var schemas []string
		if schemas, err = m.service.Schemas(ctx, req.Database); err == nil {
			m.explorer.SetSchemas(req.Database, schemas)
		}
	case explorer.NodeSchema:
		var tables []string
		if tables, err = m.service.Tables(ctx, req.Database, req.Schema); err == nil {
			m.explorer.SetTables(req.Database, req.Schema, tables)
		}
	case explorer.NodeTable:
		var detail *app.TableDetail
		if detail, err = m.service.Table(ctx, req.Database, req.Schema, req.Table); err == nil {
			m.explorer.SetColumns(req.Database, req.Schema, req.Table, detail.Columns, detail.RowsEstimate)
		}
	}

	if err != nil {
		m.explorer.Collapse(req)
		m.statusbar.SetMessage("Failed to load: " + err.Error())
	}
}

func (m Model) execute(req app.Request, confirm app.ConfirmFunc) (Model, tea.Cmd) {
	fut, err := m.service.Execute(m.ctx, req, confirm)
	if err != nil {
		m.syncStatus()
		return m, nil
	}
	m.results.SetLoading(true)
	m.syncStatus()
	return m, await(fut)
}

func (m Model) openTable(msg explorer.OpenTableMsg, confirm app.ConfirmFunc) (Model, tea.Cmd) {
	query, fut, err := m.service.OpenTable(m.ctx, msg.Database, msg.Schema, msg.Table, confirm)
	if query != "" {
		m.editor.SetQuery(query)
	}
	if err != nil {
		if !errors.Is(err, app.ErrDiscardDeclined) {
			m.statusbar.SetMessage("Could not open table: " + err.Error())
		}
		return m, nil
	}
	m.results.SetLoading(true)
	m.syncStatus()
	return m, await(fut)
}

// await blocks a command goroutine until the query finishes.
func await(fut *app.Future) tea.Cmd {
	return func() tea.Msg {
		out, _ := fut.Await()
		return queryDoneMsg{outcome: out}
	}
}

func (m *Model) commit() {
	if err := m.service.Commit(m.ctx); err != nil {
		logger.Warn("Commit failed", "error", err)
		if errors.Is(err, app.ErrQueryInFlight) {
			m.statusbar.SetMessage("Query already running...")
			return
		}
	}
	m.results.Sync()
	m.syncStatus()
}

func (m *Model) rollback() {
	if err := m.service.Rollback(m.ctx); err != nil {
		logger.Warn("Rollback failed", "error", err)
		if errors.Is(err, app.ErrQueryInFlight) {
			m.statusbar.SetMessage("Query already running...")
			return
		}
	}
	m.results.Sync()
	m.syncStatus()
}

// syncStatus copies the service state into the status bar.
func (m *Model) syncStatus() {
	if p, ok := m.service.Working(); ok {
		m.statusbar.SetConnected(true, p.Name+"/"+p.Database)
	} else {
		m.statusbar.SetConnected(false, "")
	}
	m.statusbar.SetPending(m.service.Grid().HasPendingChanges())
	m.statusbar.SetBusy(m.service.Busy())
	m.statusbar.SetMessage(m.service.Status())
}

func (m *Model) cyclePane() {
	switch m.activePane {
	case PaneExplorer:
		m.setFocus(PaneEditor)
	case PaneEditor:
		m.setFocus(PaneResults)
	case PaneResults:
		m.setFocus(PaneExplorer)
	}
}

func (m *Model) cyclePaneBack() {
	switch m.activePane {
	case PaneExplorer:
		m.setFocus(PaneResults)
	case PaneEditor:
		m.setFocus(PaneExplorer)
	case PaneResults:
		m.setFocus(PaneEditor)
	}
}

func (m *Model) setFocus(pane Pane) {
	m.activePane = pane
	m.explorer.SetFocused(pane == PaneExplorer)
	m.editor.SetFocused(pane == PaneEditor)
	m.results.SetFocused(pane == PaneResults)
	m.statusbar.SetActivePane(pane.String())
}

func explorerWidth(total int) int {
	return max(22, min(total/4, 35))
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	statusHeight := 1
	availHeight := m.height - statusHeight

	ew := explorerWidth(m.width)
	rightWidth := m.width - ew - 1

	editorHeight := max(availHeight*40/100, 5)
	resultsHeight := availHeight - editorHeight - 1

	m.dialog.SetSize(m.width, m.height)
	m.explorer.SetSize(ew, availHeight)
	m.editor.SetSize(rightWidth, editorHeight)
	m.results.SetSize(rightWidth, resultsHeight)
	m.statusbar.SetWidth(m.width)
}

// View renders the entire application.
func (m Model) View() string {
	if m.confirm != nil {
		return m.viewConfirm()
	}
	if m.showHelp {
		return m.viewHelp()
	}
	if m.mode == ModeConnection {
		return m.dialog.View()
	}
	return m.viewMain()
}

func (m Model) viewConfirm() string {
	box := theme.StyleActiveBorder.Padding(1, 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			theme.StyleTitle.Render("Confirm"),
			"",
			m.confirm.text,
			"",
			theme.StyleMuted.Render("y: Yes │ n/Esc: No"),
		),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) viewMain() string {
	explorerBorder := theme.StyleBorder
	if m.activePane == PaneExplorer {
		explorerBorder = theme.StyleActiveBorder
	}

	ew := explorerWidth(m.width)
	rightWidth := m.width - ew - 1

	statusHeight := 1
	availHeight := m.height - statusHeight - 2

	explorerView := explorerBorder.
		Width(ew - 2).
		Height(availHeight).
		Render(m.explorer.View())

	editorHeight := max(availHeight*40/100, 5)
	resultsHeight := availHeight - editorHeight - 2

	editorBorder := theme.StyleBorder
	if m.activePane == PaneEditor {
		editorBorder = theme.StyleActiveBorder
	}
	editorView := editorBorder.
		Width(rightWidth - 2).
		Height(editorHeight).
		Render(m.editor.View())

	resultsBorder := theme.StyleBorder
	if m.activePane == PaneResults {
		resultsBorder = theme.StyleActiveBorder
	}
	resultsView := resultsBorder.
		Width(rightWidth - 2).
		Height(resultsHeight).
		Render(m.results.View())

	rightPane := lipgloss.JoinVertical(lipgloss.Left,
		editorView,
		resultsView,
	)

	mainArea := lipgloss.JoinHorizontal(lipgloss.Top,
		explorerView,
		rightPane,
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		mainArea,
		m.statusbar.View(),
	)
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true)

	sectionStyle := lipgloss.NewStyle().
		Foreground(theme.ColorHighlight).
		Bold(true)

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	descStyle := lipgloss.NewStyle().
		Foreground(theme.ColorMuted)

	row := func(key, desc string) string {
		return keyStyle.Render(fmt.Sprintf("  %-14s", key)) + descStyle.Render(desc)
	}

	help := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("pgkksql - Keyboard Shortcuts"),
		"",
		sectionStyle.Render("Global"),
		row("q / Ctrl+C", "Quit (asks when edits are pending)"),
		row("Tab", "Switch between panes"),
		row("Shift+Tab", "Switch panes (reverse)"),
		row("Ctrl+S", "Commit edits and statements"),
		row("Ctrl+R", "Roll back"),
		row("Ctrl+O", "Connection dialog"),
		row("?", "Toggle this help"),
		"",
		sectionStyle.Render("Server tree"),
		row("↑/k  ↓/j", "Navigate up/down"),
		row("→/l/Space", "Expand item"),
		row("←/h", "Collapse item"),
		row("Enter / s", "Open table"),
		"",
		sectionStyle.Render("Editor"),
		row("Ctrl+E / F5", "Execute query"),
		row("Tab", "Complete word (repeat to cycle)"),
		row("Ctrl+K", "Clear editor"),
		row("Ctrl+L", "Format query (uppercase keywords)"),
		"",
		sectionStyle.Render("Results"),
		row("↑↓←→ / hjkl", "Move cell cursor"),
		row("PgUp/PgDn", "Page up/down"),
		row("Enter / e", "Edit cell (Esc cancels)"),
		row("y", "Copy cell"),
		row("Y", "Copy row as JSON"),
		row("Esc", "Back to edited rows after a message"),
		"",
		theme.StyleMuted.Render("Press any key to close"),
	)

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		help,
	)
}
