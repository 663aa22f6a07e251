package results

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/joacominatel/pgkksql/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var users = database.TableRef{Schema: "public", Table: "users", PrimaryKeys: []string{"id"}}

func newGrid(ref database.TableRef) *grid.Model {
	g := grid.New()
	g.SetRows([]database.Row{
		{"id": int64(1), "name": "ada", "active": true},
		{"id": int64(2), "name": "linus", "active": false},
	}, []string{"id", "name", "active"},
		[]database.TypeCode{database.TypeInt32, database.TypeText, database.TypeBool})
	g.Bind(ref)
	return g
}

func newResults(g *grid.Model) Model {
	m := New(g)
	m.SetSize(80, 20)
	m.SetFocused(true)
	m.Refresh()
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(key(k))
	}
	return m, cmd
}

func stubClipboard(t *testing.T, err error) *string {
	t.Helper()
	var got string
	orig := writeClipboard
	writeClipboard = func(s string) error {
		got = s
		return err
	}
	t.Cleanup(func() { writeClipboard = orig })
	return &got
}

func TestCursorMovementClamps(t *testing.T) {
	m := newResults(newGrid(users))

	m, _ = send(m, "j", "j", "j", "l", "l", "l")
	row, col := m.Cursor()
	assert.Equal(t, 1, row)
	assert.Equal(t, 2, col)

	m, _ = send(m, "g", "h")
	row, col = m.Cursor()
	assert.Equal(t, 0, row)
	assert.Equal(t, 1, col)
}

func TestTextEdit(t *testing.T) {
	g := newGrid(users)
	m := newResults(g)

	m, _ = send(m, "l", "enter")
	require.True(t, m.Editing())

	m, cmd := send(m, "ctrl+u", "grace", "enter")
	assert.False(t, m.Editing())
	require.NotNil(t, cmd)
	assert.Equal(t, CellEditedMsg{Row: 0, Col: 1}, cmd())
	assert.Equal(t, "grace", g.Value(0, 1))
	assert.Contains(t, m.View(), "1 edited")
}

func TestEscCancelsEdit(t *testing.T) {
	g := newGrid(users)
	m := newResults(g)

	m, _ = send(m, "l", "e", "ctrl+u", "grace", "esc")
	assert.False(t, m.Editing())
	assert.Zero(t, g.EditCount())
}

func TestChoiceEditorCycles(t *testing.T) {
	g := newGrid(users)
	m := newResults(g)

	// active is true on the first row, so the editor starts on "true".
	m, _ = send(m, "l", "l", "enter")
	require.True(t, m.Editing())
	assert.Contains(t, m.View(), "[true]")

	m, _ = send(m, "tab")
	assert.Contains(t, m.View(), "[false]")
	m, _ = send(m, "l")
	assert.Contains(t, m.View(), "[NULL]")
	m, _ = send(m, " ")
	assert.Contains(t, m.View(), "[true]", "wraps around")
	m, _ = send(m, "h")
	assert.Contains(t, m.View(), "[NULL]")

	_, cmd := send(m, "enter")
	require.NotNil(t, cmd)
	assert.Nil(t, g.Value(0, 2))
	assert.True(t, g.IsEdited(0, 2))
}

func TestInvalidInputKeepsEditorOpen(t *testing.T) {
	g := newGrid(users)
	m := newResults(g)

	m, _ = send(m, "enter", "ctrl+u", "abc")
	m, cmd := send(m, "enter")
	assert.True(t, m.Editing())
	require.NotNil(t, cmd)
	msg, ok := cmd().(StatusNotifyMsg)
	require.True(t, ok)
	assert.Contains(t, msg.Message, "Invalid value")
	assert.Zero(t, g.EditCount())
}

func TestReadOnlyResults(t *testing.T) {
	tests := []struct {
		name string
		ref  database.TableRef
		want string
	}{
		{"unbound", database.TableRef{}, "Read-only result: table not detected"},
		{"no primary key", database.TableRef{Schema: "public", Table: "log"}, "Read-only result: no primary key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newResults(newGrid(tt.ref))
			m, cmd := send(m, "enter")
			assert.False(t, m.Editing())
			require.NotNil(t, cmd)
			assert.Equal(t, StatusNotifyMsg{Message: tt.want}, cmd())
		})
	}
}

func TestCopyCell(t *testing.T) {
	got := stubClipboard(t, nil)
	m := newResults(newGrid(users))

	_, cmd := send(m, "j", "l", "y")
	require.NotNil(t, cmd)
	assert.Equal(t, "linus", *got)
	assert.Equal(t, StatusNotifyMsg{Message: "Copied: linus"}, cmd())
}

func TestCopyFailureIsReported(t *testing.T) {
	stubClipboard(t, errors.New("no display"))
	m := newResults(newGrid(users))

	_, cmd := send(m, "y")
	require.NotNil(t, cmd)
	assert.Equal(t, StatusNotifyMsg{Message: "Copy failed: no display"}, cmd())
}

func TestCopyRowIncludesEdits(t *testing.T) {
	got := stubClipboard(t, nil)
	g := newGrid(users)
	require.NoError(t, g.SetInput(0, 1, `grace "amazing"`))
	m := newResults(g)

	_, cmd := send(m, "Y")
	require.NotNil(t, cmd)
	assert.Equal(t, `{"id": 1, "name": "grace \"amazing\"", "active": true}`, *got)
}

func TestMessagePanels(t *testing.T) {
	g := grid.New()
	m := newResults(g)
	assert.Contains(t, m.View(), "Execute a query")

	g.SetError("relation \"nope\" does not exist")
	assert.Contains(t, m.View(), `Error: relation "nope" does not exist`)

	g.SetDML(3)
	assert.Contains(t, m.View(), "3 row(s) affected (uncommitted)")
}

func TestMessageOverStagedEdits(t *testing.T) {
	g := newGrid(users)
	m := newResults(g)
	m, _ = send(m, "l", "enter", "ctrl+u", "grace", "enter")
	require.Equal(t, 1, g.EditCount())

	g.SetDML(3)
	m.Refresh()
	view := m.View()
	assert.Contains(t, view, "3 row(s) affected (uncommitted)")
	assert.Contains(t, view, "Esc: back to edited rows")

	_, cmd := send(m, "esc")
	require.NotNil(t, cmd)
	assert.Equal(t, ShowTableMsg{}, cmd())

	require.True(t, g.ShowTable())
	m.Refresh()
	assert.Contains(t, m.View(), "grace")
	assert.NotContains(t, m.View(), "Esc: back")
}

func TestEscWithoutHiddenTable(t *testing.T) {
	g := grid.New()
	m := newResults(g)
	g.SetDML(1)
	_, cmd := send(m, "esc")
	assert.Nil(t, cmd)
}

func TestFit(t *testing.T) {
	assert.Equal(t, "ab   ", fit("ab", 5))
	assert.Equal(t, "abcd…", fit("abcdefgh", 5))
	assert.Equal(t, "a b  ", fit("a\nb", 5))
}

func TestTruncateStatus(t *testing.T) {
	assert.Equal(t, "short", truncateStatus("short", 10))
	assert.Equal(t, "ñññ...", truncateStatus("ñññññññññ", 6))
}
