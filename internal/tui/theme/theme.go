package theme

import "github.com/charmbracelet/lipgloss"

// Palette is a named set of colors.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
	Muted     lipgloss.Color
	Highlight lipgloss.Color
	Edited    lipgloss.Color
	StatusBg  lipgloss.Color
	StatusFg  lipgloss.Color
}

var palettes = map[string]Palette{
	"default": {
		Primary:   lipgloss.Color("63"),  // Purple
		Secondary: lipgloss.Color("241"), // Gray
		Success:   lipgloss.Color("42"),  // Green
		Error:     lipgloss.Color("196"), // Red
		Border:    lipgloss.Color("238"), // Dark gray
		Muted:     lipgloss.Color("245"), // Light gray
		Highlight: lipgloss.Color("229"), // Yellow
		Edited:    lipgloss.Color("215"), // Orange
		StatusBg:  lipgloss.Color("236"),
		StatusFg:  lipgloss.Color("252"),
	},
	"light": {
		Primary:   lipgloss.Color("25"),
		Secondary: lipgloss.Color("244"),
		Success:   lipgloss.Color("28"),
		Error:     lipgloss.Color("160"),
		Border:    lipgloss.Color("250"),
		Muted:     lipgloss.Color("242"),
		Highlight: lipgloss.Color("130"),
		Edited:    lipgloss.Color("166"),
		StatusBg:  lipgloss.Color("254"),
		StatusFg:  lipgloss.Color("235"),
	},
}

// Color palette, minimalist and terminal-friendly.
var (
	ColorPrimary   lipgloss.Color
	ColorSecondary lipgloss.Color
	ColorSuccess   lipgloss.Color
	ColorError     lipgloss.Color
	ColorBorder    lipgloss.Color
	ColorMuted     lipgloss.Color
	ColorHighlight lipgloss.Color
	ColorEdited    lipgloss.Color
)

// Shared styles used across TUI components.
var (
	StyleBorder       lipgloss.Style
	StyleActiveBorder lipgloss.Style
	StyleTitle        lipgloss.Style
	StyleMuted        lipgloss.Style
	StyleError        lipgloss.Style
	StyleSuccess      lipgloss.Style
	StyleEdited       lipgloss.Style
	StyleStatusBar    lipgloss.Style
)

func init() {
	Use("default")
}

// Use switches to the named palette. Unknown names keep the current one
// and report false.
func Use(name string) bool {
	p, ok := palettes[name]
	if !ok {
		return false
	}

	ColorPrimary = p.Primary
	ColorSecondary = p.Secondary
	ColorSuccess = p.Success
	ColorError = p.Error
	ColorBorder = p.Border
	ColorMuted = p.Muted
	ColorHighlight = p.Highlight
	ColorEdited = p.Edited

	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleActiveBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary)

	StyleTitle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)

	StyleMuted = lipgloss.NewStyle().
		Foreground(ColorMuted)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorError)

	StyleSuccess = lipgloss.NewStyle().
		Foreground(ColorSuccess)

	StyleEdited = lipgloss.NewStyle().
		Foreground(ColorEdited).
		Bold(true)

	StyleStatusBar = lipgloss.NewStyle().
		Background(p.StatusBg).
		Foreground(p.StatusFg).
		Padding(0, 1)

	return true
}
