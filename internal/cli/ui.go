package cli

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - titles and system messages
	colorYellow = lipgloss.Color("220") // Amber - highlighted messages
	colorWhite  = lipgloss.Color("255") // Bright white - normal messages
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
	colorRed    = lipgloss.Color("167") // Soft red - paused indicator
)

// =============================================================================
// Styles
// =============================================================================

var (
	// styleTitle for the demo header.
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// styleDim for keybinding help and counters.
	styleDim = lipgloss.NewStyle().Foreground(colorDim)

	// styleStat for stat values in the footer.
	styleStat = lipgloss.NewStyle().Foreground(colorGray)

	// stylePaused marks the paused state.
	stylePaused = lipgloss.NewStyle().Bold(true).Foreground(colorRed)

	// Message styles by kind.
	styleMsgNormal    = lipgloss.NewStyle().Foreground(colorWhite)
	styleMsgHighlight = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleMsgSystem    = lipgloss.NewStyle().Italic(true).Foreground(colorCyan)
)
