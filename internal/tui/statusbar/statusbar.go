package statusbar

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgkksql/internal/tui/theme"
)

const defaultHints = "Ctrl+E: Execute │ Ctrl+S: Commit │ Ctrl+R: Rollback │ Ctrl+O: Connections │ ?: Help"

// Model is the bottom status line: connection and transaction state on the
// left, the last status message (or key hints) on the right.
type Model struct {
	width   int
	target  string // "profile/database", empty when disconnected
	pane    string
	message string
	pending bool
	busy    bool
}

// New creates a new status bar model.
func New() Model {
	return Model{pane: "explorer"}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected updates the connection segment. name is ignored when
// connected is false.
func (m *Model) SetConnected(connected bool, name string) {
	if !connected {
		name = ""
	}
	m.target = name
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.pane = pane
}

// SetMessage replaces the status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// Message returns the current status message.
func (m Model) Message() string {
	return m.message
}

// SetPending marks that the transaction holds uncommitted work.
func (m *Model) SetPending(p bool) {
	m.pending = p
}

// SetBusy marks a query in flight.
func (m *Model) SetBusy(b bool) {
	m.busy = b
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the bar is driven by setters.
func (m Model) Update(_ tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) segments() []string {
	dot := lipgloss.NewStyle().Foreground(theme.ColorError).Render("●")
	conn := dot + " disconnected"
	if m.target != "" {
		dot = lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●")
		conn = dot + " " + m.target
	}

	out := []string{conn}
	if m.pane != "" {
		out = append(out, theme.StyleMuted.Render("["+m.pane+"]"))
	}
	switch {
	case m.busy:
		out = append(out, theme.StyleMuted.Render("running…"))
	case m.pending:
		out = append(out, theme.StyleEdited.Render("uncommitted"))
	}
	return out
}

// View renders the status bar.
func (m Model) View() string {
	left := strings.Join(m.segments(), "  ")
	right := m.message
	if right == "" {
		right = defaultHints
	}

	// 4 cells go to the bar's horizontal padding and a separating space.
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-4, 1)
	return theme.StyleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
