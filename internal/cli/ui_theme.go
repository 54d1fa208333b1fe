package cli

import (
	"github.com/charmbracelet/lipgloss"

	"nsg-job-manager/internal/prefs"
)

type uiTheme struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	OK      lipgloss.Style
	Info    lipgloss.Style
	Panel   lipgloss.Style
	Sel     lipgloss.Style
	Header  lipgloss.Style
	Failed  lipgloss.Style
	Dark    bool
	BarFrom string
	BarTo   string
}

func newUITheme(t prefs.Theme) uiTheme {
	var dark bool
	switch t {
	case prefs.ThemeLight:
		dark = false
	case prefs.ThemeDark:
		dark = true
	default:
		dark = lipgloss.HasDarkBackground()
	}
	if dark {
		return uiTheme{
			Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
			Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
			OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
			Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
			Panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
			Sel:     lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true),
			Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Bold(true).Underline(true),
			Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
			Dark:    true,
			BarFrom: "#5A56E0",
			BarTo:   "#EE6FF8",
		}
	}
	return uiTheme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("127")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("25")),
		Panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("246")).Padding(0, 1),
		Sel:     lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("25")).Bold(true),
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("236")).Bold(true).Underline(true),
		Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		Dark:    false,
		BarFrom: "#2E7BCF",
		BarTo:   "#7E3FBF",
	}
}
