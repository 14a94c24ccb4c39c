package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/pares/internal/feasibility"
)

// Semantic color palette.
var (
	colorPrimary    = lipgloss.Color("#00BFFF") // Cyan: headings
	colorAccent     = lipgloss.Color("#FFD700") // Gold: warnings, Do next
	colorSuccess    = lipgloss.Color("#00E676") // Green: Do now, ok
	colorDanger     = lipgloss.Color("#FF5252") // Red: errors, Do later
	colorMuted      = lipgloss.Color("#636363") // Gray: borders, notes
	colorMutedLight = lipgloss.Color("#8C8C8C") // Lighter gray: labels
	colorWhite      = lipgloss.Color("#EEEEEE") // Off-white: values
	colorBlue       = lipgloss.Color("#5B8DEF") // Blue: group names
)

// Status icons.
const (
	iconOK      = "✓"
	iconFailed  = "✗"
	iconWarning = "⚠"
	iconNote    = "·"
	iconGate    = "⊘"
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorMutedLight)

	styleValue = lipgloss.NewStyle().
			Foreground(colorWhite)

	styleDim = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleGroup = lipgloss.NewStyle().
			Foreground(colorBlue)

	styleOK = lipgloss.NewStyle().
		Foreground(colorSuccess).
		Bold(true)

	styleWarn = lipgloss.NewStyle().
			Foreground(colorAccent)

	styleError = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	styleCell = lipgloss.NewStyle().
			Foreground(colorWhite).
			Padding(0, 1)

	styleBorder = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// tierStyle colors a feasibility tier label.
func tierStyle(tier string) lipgloss.Style {
	switch tier {
	case feasibility.TierDoNow:
		return styleOK
	case feasibility.TierDoNext:
		return styleWarn
	case feasibility.TierDoLater:
		return lipgloss.NewStyle().Foreground(colorDanger)
	default:
		return styleDim
	}
}
