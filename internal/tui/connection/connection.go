// Package connection implements the connection profile dialog.
package connection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgkksql/internal/config"
	"github.com/joacominatel/pgkksql/internal/tui/theme"
)

// NewConnectionLabel is the first entry of the profile list.
const NewConnectionLabel = "[New Connection]"

// UnnamedProfile replaces a blank profile name.
const UnnamedProfile = "Unnamed"

// ErrInvalidPort is returned for ports outside 1..65535.
var ErrInvalidPort = errors.New("port must be between 1 and 65535")

// ConnectMsg asks the app to connect with a profile.
type ConnectMsg struct {
	Profile config.Profile
}

// SaveMsg asks the app to store a profile.
type SaveMsg struct {
	Profile config.Profile
}

// DeleteMsg asks the app to remove a stored profile.
type DeleteMsg struct {
	Name string
}

// CloseMsg dismisses the dialog without connecting.
type CloseMsg struct{}

const (
	fieldName = iota
	fieldHost
	fieldPort
	fieldDatabase
	fieldUser
	fieldPassword
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "Host", "Port", "Database", "User", "Password"}

// focusList marks the profile list as focused instead of a form field.
const focusList = -1

// Model is the connection dialog.
type Model struct {
	profiles []config.Profile
	cursor   int // 0 is the new connection entry
	inputs   [fieldCount]textinput.Model
	focus    int
	err      string
	width    int
	height   int
}

// New creates the dialog over the stored profiles. The new connection
// entry starts selected with the default values filled in.
func New(profiles []config.Profile) Model {
	m := Model{profiles: profiles, focus: focusList}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 40
		m.inputs[i] = ti
	}
	m.inputs[fieldName].Placeholder = UnnamedProfile
	m.inputs[fieldPort].CharLimit = 5
	m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	m.inputs[fieldPassword].EchoCharacter = '•'
	m.fill(config.NewProfile())
	return m
}

// SetProfiles replaces the list, keeping the selection on name when it is
// still present.
func (m *Model) SetProfiles(profiles []config.Profile, name string) {
	m.profiles = profiles
	m.cursor = 0
	for i, p := range profiles {
		if p.Name == name {
			m.cursor = i + 1
		}
	}
	m.load()
}

// SetError shows msg below the form.
func (m *Model) SetError(msg string) {
	m.err = msg
}

// SetSize updates the dialog dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Selected returns the highlighted stored profile. It reports false when
// the new connection entry is highlighted.
func (m Model) Selected() (config.Profile, bool) {
	if m.cursor == 0 || m.cursor > len(m.profiles) {
		return config.Profile{}, false
	}
	return m.profiles[m.cursor-1], true
}

// Entries returns the list labels in display order.
func (m Model) Entries() []string {
	out := []string{NewConnectionLabel}
	for _, p := range m.profiles {
		out = append(out, p.Name)
	}
	return out
}

// Form returns the profile described by the form fields. A blank name
// becomes "Unnamed".
func (m Model) Form() (config.Profile, error) {
	port, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldPort].Value()))
	if err != nil || port < 1 || port > 65535 {
		return config.Profile{}, ErrInvalidPort
	}
	name := strings.TrimSpace(m.inputs[fieldName].Value())
	if name == "" {
		name = UnnamedProfile
	}
	return config.Profile{
		Name:     name,
		Host:     strings.TrimSpace(m.inputs[fieldHost].Value()),
		Port:     port,
		Database: strings.TrimSpace(m.inputs[fieldDatabase].Value()),
		User:     strings.TrimSpace(m.inputs[fieldUser].Value()),
		Password: m.inputs[fieldPassword].Value(),
	}, nil
}

func (m *Model) fill(p config.Profile) {
	m.inputs[fieldName].SetValue(p.Name)
	m.inputs[fieldHost].SetValue(p.Host)
	m.inputs[fieldPort].SetValue(strconv.Itoa(p.Port))
	m.inputs[fieldDatabase].SetValue(p.Database)
	m.inputs[fieldUser].SetValue(p.User)
	m.inputs[fieldPassword].SetValue(p.Password)
}

// load fills the form from the highlighted entry.
func (m *Model) load() {
	if p, ok := m.Selected(); ok {
		m.fill(p)
	} else {
		m.fill(config.NewProfile())
	}
	m.err = ""
}

func (m *Model) setFocus(i int) tea.Cmd {
	for f := range m.inputs {
		m.inputs[f].Blur()
	}
	m.focus = i
	if i == focusList {
		return nil
	}
	return m.inputs[i].Focus()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateInput(msg)
	}

	switch key.String() {
	case "enter":
		return m, m.submit(func(p config.Profile) tea.Msg { return ConnectMsg{Profile: p} })
	case "ctrl+s":
		return m, m.submit(func(p config.Profile) tea.Msg { return SaveMsg{Profile: p} })
	}

	if m.focus == focusList {
		switch key.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.load()
			}
		case "down", "j":
			if m.cursor < len(m.profiles) {
				m.cursor++
				m.load()
			}
		case "tab", "e":
			return m, m.setFocus(fieldName)
		case "d", "delete":
			if p, ok := m.Selected(); ok {
				name := p.Name
				return m, func() tea.Msg { return DeleteMsg{Name: name} }
			}
		case "esc":
			return m, func() tea.Msg { return CloseMsg{} }
		}
		return m, nil
	}

	switch key.String() {
	case "tab", "down":
		if m.focus == fieldCount-1 {
			return m, m.setFocus(focusList)
		}
		return m, m.setFocus(m.focus + 1)
	case "shift+tab", "up":
		if m.focus == fieldName {
			return m, m.setFocus(focusList)
		}
		return m, m.setFocus(m.focus - 1)
	case "esc":
		return m, m.setFocus(focusList)
	}

	return m.updateInput(msg)
}

func (m Model) updateInput(msg tea.Msg) (Model, tea.Cmd) {
	if m.focus == focusList {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) submit(wrap func(config.Profile) tea.Msg) tea.Cmd {
	p, err := m.Form()
	if err != nil {
		m.err = err.Error()
		return nil
	}
	m.err = ""
	return func() tea.Msg { return wrap(p) }
}

// View renders the dialog.
func (m Model) View() string {
	title := theme.StyleTitle.Render("Connect to PostgreSQL")

	var list strings.Builder
	for i, entry := range m.Entries() {
		line := "  " + entry
		if i > 0 {
			line += " " + theme.StyleMuted.Render(m.profiles[i-1].DisplayString())
		}
		if i == m.cursor {
			style := lipgloss.NewStyle().Foreground(theme.ColorHighlight)
			if m.focus == focusList {
				style = style.Bold(true)
			}
			line = style.Render("▸ " + entry)
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	var form strings.Builder
	for i, label := range fieldLabels {
		style := theme.StyleMuted
		if i == m.focus {
			style = lipgloss.NewStyle().Foreground(theme.ColorPrimary).Bold(true)
		}
		form.WriteString(style.Render(fmt.Sprintf("%-9s", label)))
		form.WriteString(" ")
		form.WriteString(m.inputs[i].View())
		form.WriteString("\n")
	}

	content := title + "\n\n" + list.String() + "\n" + form.String()
	if m.err != "" {
		content += "\n" + theme.StyleError.Render("Error: "+m.err)
	}
	content += "\n" + theme.StyleMuted.Render(
		"Enter: Connect │ Tab: Next field │ Ctrl+S: Save │ d: Delete │ Esc: Back")

	box := theme.StyleActiveBorder.Padding(1, 3).Render(content)
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
