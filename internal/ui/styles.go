package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for CLI output
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers
	SuccessColor = lipgloss.Color("#43BF6D") // Green - success, checkmarks
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Shared styles for CLI output
var (
	// HeaderStyle is for section titles
	HeaderStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	// SuccessStyle is for confirmations and final tallies
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	// ErrorStyle is for failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// WarningStyle is for recoverable conditions
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// MutedStyle is for secondary detail
	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// LabelStyle is for field names in key/value output
	LabelStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(16)

	// PhaseStyle marks provisioning phase transitions
	PhaseStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)
)

// TerminalWidth returns the current terminal width, or a usable default
// when stdout is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
