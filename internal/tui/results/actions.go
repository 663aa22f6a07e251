package results

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/pgkksql/internal/grid"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

func (m Model) hasRow() bool {
	return m.grid.Kind() == grid.KindTable &&
		m.cursorY >= 0 && m.cursorY < m.grid.RowCount()
}

func (m Model) copyCell() tea.Cmd {
	if !m.hasRow() || m.grid.ColumnCount() == 0 {
		return notify("Nothing to copy")
	}
	val := m.grid.Display(m.cursorY, m.cursorX)
	if err := writeClipboard(val); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	return notify("Copied: " + truncateStatus(val, 40))
}

func (m Model) copyRowJSON() tea.Cmd {
	if !m.hasRow() {
		return notify("No row to copy")
	}
	if err := writeClipboard(rowToJSON(m.grid, m.cursorY)); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	return notify("Copied row as JSON")
}

// rowToJSON preserves column order unlike map marshaling. Pending edits
// are included.
func rowToJSON(g *grid.Model, row int) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range g.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		key, _ := json.Marshal(col)
		b.Write(key)
		b.WriteString(": ")
		b.Write(jsonValue(g.Value(row, i)))
	}
	b.WriteString("}")
	return b.String()
}

func jsonValue(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		out, _ = json.Marshal(fmt.Sprint(v))
	}
	return out
}

func truncateStatus(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
