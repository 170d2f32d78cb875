// Package tui renders the restore run: a banner, a live step table and the
// final markdown report.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Configure sets the color profile for everything rendered by this package.
// Plain output uses no escape sequences at all. The profile is set explicitly
// so nothing queries the terminal and contaminates stdin.
func Configure(plain bool) {
	if plain {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.TrueColor)
	lipgloss.SetHasDarkBackground(true)
}

// Banner renders a centered, rounded panel with up to three lines.
func Banner(title, subtitle, link string) string {
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51")).Render(title)}
	if subtitle != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Render(subtitle))
	}
	if link != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Render(link))
	}
	body := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 4).
		Render(body)
}
