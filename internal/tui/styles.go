package tui

import "github.com/charmbracelet/lipgloss"

// Serac color palette
var (
	ColorGlacier = lipgloss.Color("#9FD8E8") // cyan accents
	ColorShadow  = lipgloss.Color("#5C6E79") // muted secondary text
	ColorText    = lipgloss.Color("#E4E8EB") // primary text
	ColorBlock   = lipgloss.Color("#F07171") // red for blocks/errors
	ColorPermit  = lipgloss.Color("#57C7B8") // green for permits
	ColorCallout = lipgloss.Color("#F2D479") // yellow for callout actions
	ColorMuted   = lipgloss.Color("#76848c") // de-emphasized text
)

// Styles
var (
	StyleBase = lipgloss.NewStyle().Foreground(ColorText)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorGlacier).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorShadow).
			Padding(0, 1)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorGlacier).
			Bold(true)

	StyleSubtitle = lipgloss.NewStyle().
			Foreground(ColorShadow).
			Italic(true)

	StyleStatusGood = lipgloss.NewStyle().Foreground(ColorPermit).Bold(true)
	StyleStatusBad  = lipgloss.NewStyle().Foreground(ColorBlock).Bold(true)
	StyleStatusWarn = lipgloss.NewStyle().Foreground(ColorCallout).Bold(true)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorShadow).
			Padding(0, 1).
			Margin(0, 1)

	StyleApp = lipgloss.NewStyle().Margin(1, 2)
)
