package editor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgkksql/internal/tui/theme"
)

// ExecuteQueryMsg is sent when the user triggers query execution.
type ExecuteQueryMsg struct {
	Query string
}

// CandidateSource supplies completions for a partial word.
type CandidateSource interface {
	Candidates(word string) []string
}

// keywords are uppercased by the format action (ctrl+l).
var keywords = wordSet(`
	select from where and or not in is null like ilike between exists
	insert into values update set delete returning
	create drop alter table index primary key foreign references cascade restrict default
	join inner outer left right cross full on using
	order by group having limit offset as distinct union all asc desc
	count sum avg min max coalesce cast
	case when then else end true false
	begin commit rollback
`)

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

// Model is the SQL query editor component.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool

	source      CandidateSource
	completing  bool
	completions []string
	compIndex   int
	compBase    string // text before the word being completed
}

// New creates a new editor model. source may be nil.
func New(source CandidateSource) Model {
	ta := textarea.New()
	ta.Placeholder = "Enter SQL query..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0 // unlimited
	ta.Prompt = "│ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.ColorMuted)
	ta.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.ColorMuted)
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)

	return Model{
		textarea: ta,
		source:   source,
	}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(w - 2)
	m.textarea.SetHeight(h - 2)
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// Focused returns whether the editor has focus.
func (m Model) Focused() bool {
	return m.focused
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(query string) {
	m.textarea.SetValue(query)
	m.cancelCompletion()
}

// Clear empties the editor.
func (m *Model) Clear() {
	m.textarea.Reset()
	m.cancelCompletion()
}

// Completions returns the candidates currently offered, if any.
func (m Model) Completions() []string {
	return m.completions
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()

		switch key {
		case "ctrl+e", "f5":
			query := strings.TrimSpace(m.textarea.Value())
			if query != "" {
				m.cancelCompletion()
				return m, func() tea.Msg {
					return ExecuteQueryMsg{Query: query}
				}
			}
			return m, nil

		case "ctrl+k":
			m.Clear()
			return m, nil

		case "ctrl+l":
			m.formatKeywords()
			return m, nil

		case "tab":
			if m.Complete() {
				return m, nil
			}

		case "esc":
			if m.completing {
				m.cancelCompletion()
				return m, nil
			}
		}

		if m.completing && key != "tab" && key != "esc" {
			m.cancelCompletion()
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// formatKeywords uppercases all SQL keywords outside literals and comments.
func (m *Model) formatKeywords() {
	if val := m.textarea.Value(); val != "" {
		m.textarea.SetValue(FormatKeywords(val))
	}
}

// FormatKeywords uppercases SQL keywords in sql. Quoted strings, quoted
// identifiers and -- comments are copied unchanged.
func FormatKeywords(sql string) string {
	src := []rune(sql)
	var out strings.Builder
	out.Grow(len(sql))

	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == '\'' || ch == '"':
			j := i + 1
			for j < len(src) && src[j] != ch {
				j++
			}
			j = min(j+1, len(src))
			out.WriteString(string(src[i:j]))
			i = j

		case ch == '-' && i+1 < len(src) && src[i+1] == '-':
			j := i
			for j < len(src) && src[j] != '\n' {
				j++
			}
			out.WriteString(string(src[i:j]))
			i = j

		case unicode.IsLetter(ch) || ch == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(src[j]) || unicode.IsDigit(src[j]) || src[j] == '_') {
				j++
			}
			word := string(src[i:j])
			if keywords[strings.ToLower(word)] {
				word = strings.ToUpper(word)
			}
			out.WriteString(word)
			i = j

		default:
			out.WriteRune(ch)
			i++
		}
	}
	return out.String()
}

// Complete completes the word at the end of the text. Repeated calls
// cycle through the candidates. Returns true if a completion was applied.
func (m *Model) Complete() bool {
	if m.source == nil {
		return false
	}

	if m.completing && len(m.completions) > 0 {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
		m.applyCompletion()
		return true
	}

	val := strings.TrimRight(m.textarea.Value(), " \t\n\r")
	partial := extractLastWord(val)
	if partial == "" {
		return false
	}

	matches := m.source.Candidates(partial)
	if len(matches) == 0 {
		return false
	}

	m.completing = true
	m.completions = matches
	m.compIndex = 0
	m.compBase = strings.TrimSuffix(val, partial)
	m.applyCompletion()
	return true
}

// applyCompletion replaces the last word with the active candidate.
func (m *Model) applyCompletion() {
	if len(m.completions) == 0 {
		return
	}
	m.textarea.SetValue(m.compBase + m.completions[m.compIndex])
}

func (m *Model) cancelCompletion() {
	m.completing = false
	m.completions = nil
	m.compIndex = 0
	m.compBase = ""
}

// extractLastWord returns the identifier-like token ending the text,
// including dots so "public.us" completes as one word.
func extractLastWord(s string) string {
	s = strings.TrimRight(s, " \t\n\r")
	i := strings.LastIndexFunc(s, func(r rune) bool { return !isIdentChar(r) })
	return s[i+1:]
}

func isIdentChar(c rune) bool {
	return c == '_' || c == '.' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// View renders the editor.
func (m Model) View() string {
	heading := lipgloss.NewStyle().Foreground(theme.ColorPrimary).Bold(true).Padding(0, 1)
	title := heading.Render("Query")
	if n := m.textarea.LineCount(); n > 1 {
		title += theme.StyleMuted.Render(fmt.Sprintf("%d lines", n))
	}

	view := title + "\n" + m.textarea.View()
	if !m.completing || len(m.completions) < 2 {
		return view
	}

	active := lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true)
	items := make([]string, len(m.completions))
	for i, c := range m.completions {
		if i == m.compIndex {
			items[i] = active.Render(c)
		} else {
			items[i] = theme.StyleMuted.Render(c)
		}
	}
	return view + "\n " + theme.StyleMuted.Render(fmt.Sprintf("Tab %d/%d: ", m.compIndex+1, len(m.completions))) +
		strings.Join(items, " ")
}
