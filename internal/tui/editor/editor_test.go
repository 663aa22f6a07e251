package editor

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource map[string][]string

func (s stubSource) Candidates(word string) []string {
	return s[strings.ToLower(word)]
}

func focused(src CandidateSource, query string) Model {
	m := New(src)
	m.SetSize(80, 10)
	m.SetFocused(true)
	m.SetQuery(query)
	return m
}

func TestFormatKeywords(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"select * from users where id = 1", "SELECT * FROM users WHERE id = 1"},
		{"select 'from where' as label", "SELECT 'from where' AS label"},
		{`select "order" from t order by "order"`, `SELECT "order" FROM t ORDER BY "order"`},
		{"update t set name_from = 1", "UPDATE t SET name_from = 1"},
		{"select 1 -- from here\nfrom t", "SELECT 1 -- from here\nFROM t"},
		{"select 'it''s' from t2", "SELECT 'it''s' FROM t2"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatKeywords(tt.in))
	}
}

func TestCtrlLFormatsBuffer(t *testing.T) {
	m := focused(nil, "select 1")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Equal(t, "SELECT 1", m.Value())
}

func TestCompleteCyclesCandidates(t *testing.T) {
	src := stubSource{"us": {"users", "user_roles"}}
	m := focused(src, "select * from us")

	require.True(t, m.Complete())
	assert.Equal(t, "select * from users", m.Value())
	assert.Equal(t, []string{"users", "user_roles"}, m.Completions())

	require.True(t, m.Complete())
	assert.Equal(t, "select * from user_roles", m.Value())

	require.True(t, m.Complete())
	assert.Equal(t, "select * from users", m.Value(), "wraps around")
}

func TestCompleteMultiWordCandidate(t *testing.T) {
	src := stubSource{"ord": {"ORDER BY", "ORDERS"}}
	m := focused(src, "select * from t ord")

	require.True(t, m.Complete())
	assert.Equal(t, "select * from t ORDER BY", m.Value())
	require.True(t, m.Complete())
	assert.Equal(t, "select * from t ORDERS", m.Value())
}

func TestCompleteWithoutMatch(t *testing.T) {
	m := focused(stubSource{}, "select zz")
	assert.False(t, m.Complete())
	assert.Equal(t, "select zz", m.Value())

	m = focused(nil, "select")
	assert.False(t, m.Complete(), "no source")
}

func TestTypingCancelsCompletion(t *testing.T) {
	src := stubSource{"us": {"users", "user_roles"}}
	m := focused(src, "from us")
	require.True(t, m.Complete())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" ")})
	assert.Empty(t, m.Completions())
	assert.Equal(t, "from users ", m.Value())
}

func TestExecuteQueryMsg(t *testing.T) {
	m := focused(nil, "  select 1  ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	require.NotNil(t, cmd)
	assert.Equal(t, ExecuteQueryMsg{Query: "select 1"}, cmd())

	m = focused(nil, "   ")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyF5})
	assert.Nil(t, cmd, "blank buffer runs nothing")
}

func TestBlurredEditorIgnoresKeys(t *testing.T) {
	m := focused(nil, "select 1")
	m.SetFocused(false)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Nil(t, cmd)
}

func TestCtrlKClears(t *testing.T) {
	m := focused(nil, "select 1")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	assert.Empty(t, m.Value())
}
