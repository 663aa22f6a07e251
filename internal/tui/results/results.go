package results

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgkksql/internal/grid"
	"github.com/joacominatel/pgkksql/internal/tui/theme"
)

const maxColumnWidth = 40

// Model is the query results component. It renders the shared grid model
// and edits its cells in place.
type Model struct {
	grid      *grid.Model
	width     int
	height    int
	focused   bool
	loading   bool
	colWidths []int

	cursorY int
	cursorX int
	scrollY int
	scrollX int

	editing bool
	input   textinput.Model
	choice  int
}

// New creates a new results model over g.
func New(g *grid.Model) Model {
	ti := textinput.New()
	ti.Prompt = "✎ "
	ti.CharLimit = 0
	ti.PromptStyle = lipgloss.NewStyle().Foreground(theme.ColorEdited)
	ti.Cursor.SetMode(cursor.CursorStatic)

	return Model{
		grid:  g,
		input: ti,
	}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.input.Width = max(w-8, 10)
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if !f {
		m.cancelEdit()
	}
}

// Focused returns whether the results pane has focus.
func (m Model) Focused() bool {
	return m.focused
}

// Editing reports whether a cell editor is open.
func (m Model) Editing() bool {
	return m.editing
}

// Cursor returns the selected cell.
func (m Model) Cursor() (row, col int) {
	return m.cursorY, m.cursorX
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// Refresh resets the cursor after the grid received a new result.
func (m *Model) Refresh() {
	m.loading = false
	m.cursorY, m.cursorX = 0, 0
	m.scrollY, m.scrollX = 0, 0
	m.cancelEdit()
	m.calculateColumnWidths()
}

// Sync re-measures the grid after edits were committed or dropped, keeping
// the cursor where it is.
func (m *Model) Sync() {
	m.cancelEdit()
	m.calculateColumnWidths()
	m.cursorY = max(min(m.cursorY, m.grid.RowCount()-1), 0)
	m.cursorX = max(min(m.cursorX, m.grid.ColumnCount()-1), 0)
}

func (m *Model) calculateColumnWidths() {
	n := m.grid.ColumnCount()
	if m.grid.Kind() != grid.KindTable || n == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, n)
	for i, col := range m.grid.Columns() {
		m.colWidths[i] = lipgloss.Width(col)
	}
	for r, rows := 0, m.grid.RowCount(); r < rows; r++ {
		for c := 0; c < n; c++ {
			if w := lipgloss.Width(m.grid.Display(r, c)); w > m.colWidths[c] {
				m.colWidths[c] = w
			}
		}
	}
	for i := range m.colWidths {
		m.colWidths[i] = max(1, min(m.colWidths[i], maxColumnWidth))
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.editing {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.editing {
		return m.updateEditing(key)
	}

	rows := m.grid.RowCount()
	cols := m.grid.ColumnCount()
	page := max(m.visibleRows(), 1)

	switch key.String() {
	case "up", "k":
		m.cursorY = max(m.cursorY-1, 0)
	case "down", "j":
		m.cursorY = max(min(m.cursorY+1, rows-1), 0)
	case "left", "h":
		m.cursorX = max(m.cursorX-1, 0)
	case "right", "l":
		m.cursorX = max(min(m.cursorX+1, cols-1), 0)
	case "pgup":
		m.cursorY = max(m.cursorY-page, 0)
	case "pgdown":
		m.cursorY = max(min(m.cursorY+page, rows-1), 0)
	case "home", "g":
		m.cursorY = 0
	case "end", "G":
		m.cursorY = max(rows-1, 0)
	case "enter", "e":
		return m, m.startEdit()
	case "y":
		return m, m.copyCell()
	case "Y":
		return m, m.copyRowJSON()
	case "esc":
		if m.grid.HasHiddenTable() {
			return m, func() tea.Msg { return ShowTableMsg{} }
		}
	}

	m.scrollToCursor()
	return m, nil
}

func (m *Model) updateEditing(key tea.KeyMsg) (Model, tea.Cmd) {
	ed := m.grid.Editor(m.cursorX)

	switch key.String() {
	case "esc":
		m.cancelEdit()
		return *m, nil
	case "enter":
		input := m.input.Value()
		if ed.Kind == grid.EditorChoice {
			input = ed.Choices[m.choice]
		}
		return *m, m.applyEdit(input)
	}

	if ed.Kind == grid.EditorChoice {
		switch key.String() {
		case "left", "h", "shift+tab":
			m.choice = (m.choice + len(ed.Choices) - 1) % len(ed.Choices)
		case "right", "l", "tab", " ":
			m.choice = (m.choice + 1) % len(ed.Choices)
		}
		return *m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return *m, cmd
}

func (m *Model) startEdit() tea.Cmd {
	if m.grid.Kind() != grid.KindTable || m.grid.RowCount() == 0 {
		return nil
	}
	if !m.grid.Editable() {
		return notify("Read-only result: " + readOnlyReason(m.grid))
	}

	ed := m.grid.Editor(m.cursorX)
	current := ed.Input(m.grid.Value(m.cursorY, m.cursorX))
	m.editing = true
	if ed.Kind == grid.EditorChoice {
		m.choice = 0
		for i, c := range ed.Choices {
			if c == current {
				m.choice = i
			}
		}
		return nil
	}
	m.input.SetValue(current)
	m.input.CursorEnd()
	m.input.Focus()
	return nil
}

func (m *Model) applyEdit(input string) tea.Cmd {
	row, col := m.cursorY, m.cursorX
	if err := m.grid.SetInput(row, col, input); err != nil {
		return notify("Invalid value: " + err.Error())
	}
	m.cancelEdit()
	m.calculateColumnWidths()
	return func() tea.Msg { return CellEditedMsg{Row: row, Col: col} }
}

func (m *Model) cancelEdit() {
	m.editing = false
	m.input.Blur()
	m.input.Reset()
	m.choice = 0
}

func readOnlyReason(g *grid.Model) string {
	if !g.Ref().Bound() {
		return "table not detected"
	}
	return "no primary key"
}

func notify(msg string) tea.Cmd {
	return func() tea.Msg { return StatusNotifyMsg{Message: msg} }
}

func (m Model) visibleRows() int {
	h := m.height - 4 // title, header, separator, editor line
	return max(h, 1)
}

func (m *Model) scrollToCursor() {
	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if v := m.visibleRows(); m.cursorY >= m.scrollY+v {
		m.scrollY = m.cursorY - v + 1
	}
	if m.cursorX < m.scrollX {
		m.scrollX = m.cursorX
	}
	for m.scrollX < m.cursorX && m.cursorX >= m.scrollX+m.visibleColumns() {
		m.scrollX++
	}
}

// visibleColumns counts the columns from scrollX that fit the width.
func (m Model) visibleColumns() int {
	if m.width <= 0 {
		return len(m.colWidths)
	}
	used, n := 2, 0
	for i := m.scrollX; i < len(m.colWidths); i++ {
		used += m.colWidths[i] + 3
		if used > m.width && n > 0 {
			break
		}
		n++
	}
	return n
}

// View renders the results pane.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)
	title := titleStyle.Render("Results")

	if m.loading {
		return title + "\n" + theme.StyleMuted.Render("  Executing query...")
	}

	switch m.grid.Kind() {
	case grid.KindError:
		return title + "\n" + theme.StyleError.Render("  Error: "+m.grid.ErrorMessage()) + m.hiddenTableHint()
	case grid.KindDML:
		n, pending := m.grid.DMLRowCount()
		msg := fmt.Sprintf("  %d row(s) affected", n)
		if pending {
			msg += " (uncommitted)\n  " + theme.StyleMuted.Render("Ctrl+S to commit • Ctrl+R to roll back")
		}
		return title + "\n" + theme.StyleSuccess.Render(msg) + m.hiddenTableHint()
	case grid.KindEmpty:
		return title + "\n" + theme.StyleMuted.Render("  Execute a query to see results")
	}

	stats := fmt.Sprintf("%d row(s)", m.grid.RowCount())
	if n := m.grid.EditCount(); n > 0 {
		stats += " • " + theme.StyleEdited.Render(fmt.Sprintf("%d edited", n))
	}
	header := title + "  " + theme.StyleMuted.Render(stats)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")

	last := min(m.scrollX+m.visibleColumns(), len(m.colWidths))
	b.WriteString(m.renderHeader(last))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator(last))

	rows := m.grid.RowCount()
	for r := m.scrollY; r < rows && r < m.scrollY+m.visibleRows(); r++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(r, last))
	}

	if m.editing {
		b.WriteString("\n")
		b.WriteString(m.renderEditor())
	}

	return b.String()
}

func (m Model) hiddenTableHint() string {
	n := m.grid.EditCount()
	if !m.grid.HasHiddenTable() || n == 0 {
		return ""
	}
	return "\n  " + theme.StyleEdited.Render(fmt.Sprintf("%d staged edit(s) • Esc: back to edited rows", n))
}

func (m Model) renderHeader(last int) string {
	columns := m.grid.Columns()
	style := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary)
	parts := make([]string, 0, last-m.scrollX)
	for c := m.scrollX; c < last; c++ {
		parts = append(parts, style.Render(fit(columns[c], m.colWidths[c])))
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderRow(r, last int) string {
	parts := make([]string, 0, last-m.scrollX)
	for c := m.scrollX; c < last; c++ {
		cell := fit(m.grid.Display(r, c), m.colWidths[c])
		style := lipgloss.NewStyle()
		if m.grid.IsEdited(r, c) {
			style = theme.StyleEdited
		}
		if m.focused && r == m.cursorY && c == m.cursorX {
			style = style.Reverse(true)
		}
		parts = append(parts, style.Render(cell))
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator(last int) string {
	parts := make([]string, 0, last-m.scrollX)
	for c := m.scrollX; c < last; c++ {
		parts = append(parts, strings.Repeat("─", m.colWidths[c]))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

func (m Model) renderEditor() string {
	column := m.grid.Columns()[m.cursorX]
	ed := m.grid.Editor(m.cursorX)
	label := theme.StyleMuted.Render(fmt.Sprintf("  %s (%s): ", column, ed.Kind))

	if ed.Kind != grid.EditorChoice {
		return label + m.input.View()
	}
	opts := make([]string, len(ed.Choices))
	for i, c := range ed.Choices {
		if i == m.choice {
			opts[i] = theme.StyleEdited.Render("[" + c + "]")
		} else {
			opts[i] = theme.StyleMuted.Render(" " + c + " ")
		}
	}
	return label + strings.Join(opts, " ")
}

// fit truncates s with an ellipsis or pads it to exactly width cells.
func fit(s string, width int) string {
	s = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s)
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
