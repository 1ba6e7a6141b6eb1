package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	Name     string
	Title    lipgloss.Style
	Meta     lipgloss.Style
	Cursor   lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Help     lipgloss.Style
	Project  lipgloss.Style
}

// DefaultTheme is used when the configured theme is unknown.
const DefaultTheme = "outrun"

func newTheme(name string, bar, accent, fg, meta, errFG, code string) theme {
	return theme{
		Name:     name,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bar)).Padding(0, 1),
		Meta:     lipgloss.NewStyle().Foreground(lipgloss.Color(meta)),
		Cursor:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(bar)).Background(lipgloss.Color(accent)),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color(accent)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(errFG)),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color(meta)).Italic(true),
		Project:  lipgloss.NewStyle().Foreground(lipgloss.Color(code)),
	}
}

var themes = map[string]theme{
	"outrun":  newTheme("outrun", "#200838", "#00e5ff", "#f0f1ff", "#9aa3b2", "#ff6b6b", "#70d6ff"),
	"gruvbox": newTheme("gruvbox", "#3c3836", "#fabd2f", "#ebdbb2", "#928374", "#fb4934", "#83a598"),
}

func themeFor(name string) theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[DefaultTheme]
}
