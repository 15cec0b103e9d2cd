package main

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	usedColor    = lipgloss.Color("#04B575")
	freeColor    = lipgloss.Color("#666666")
	segmentColor = lipgloss.Color("#7D56F4")
	headerColor  = lipgloss.Color("#00D7FF")

	usedStyle = lipgloss.NewStyle().
			Foreground(usedColor)

	freeStyle = lipgloss.NewStyle().
			Foreground(freeColor)

	segmentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(segmentColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(headerColor)
)

// render applies s unless colour output is disabled.
func render(s lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return s.Render(text)
}
