// Package tui provides terminal output components for CORTEX.
//
// Styles are built with Lip Gloss and use AdaptiveColor for light and dark
// terminals. Status displays carry an icon, a color and the status text, so
// they stay readable when colors are disabled.
//
// Call CheckNoColor at the start of commands to respect NO_COLOR and TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/cortex/internal/constants"
)

//nolint:gochecknoglobals // Intentional package-level constants for TUI styling API
var (
	// ColorPrimary is blue, used for active states.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for completed items.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for deferred and paused items.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failed items.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for secondary text and rejected items.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting to text.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies faint formatting to text.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// OutputStyles holds common output styles.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
	Header  lipgloss.Style
}

// NewOutputStyles creates common output styles.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorPrimary),
		Dim:     lipgloss.NewStyle().Foreground(ColorMuted),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
	}
}

// CheckNoColor disables colors when the environment asks for it.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns false if NO_COLOR is set (any value, including
// empty) or TERM=dumb. See https://no-color.org/.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// TaskStatusColor returns the display color for a task status.
func TaskStatusColor(status constants.TaskStatus) lipgloss.AdaptiveColor {
	switch status {
	case constants.TaskStatusPending, constants.TaskStatusActive:
		return ColorPrimary
	case constants.TaskStatusCompleted:
		return ColorSuccess
	case constants.TaskStatusDeferred:
		return ColorWarning
	case constants.TaskStatusFailed:
		return ColorError
	case constants.TaskStatusRejected:
		return ColorMuted
	}
	return ColorMuted
}

// TaskStatusIcon returns the icon for a task status.
func TaskStatusIcon(status constants.TaskStatus) string {
	switch status {
	case constants.TaskStatusPending:
		return "○"
	case constants.TaskStatusActive:
		return "●"
	case constants.TaskStatusCompleted:
		return "✓"
	case constants.TaskStatusDeferred:
		return "⏸"
	case constants.TaskStatusFailed, constants.TaskStatusRejected:
		return "✗"
	}
	return "?"
}

// RenderTaskStatus renders icon and status text in the status color.
func RenderTaskStatus(status constants.TaskStatus) string {
	return lipgloss.NewStyle().
		Foreground(TaskStatusColor(status)).
		Render(TaskStatusIcon(status) + " " + status.String())
}

// ThoughtStatusColor returns the display color for a thought status.
func ThoughtStatusColor(status constants.ThoughtStatus) lipgloss.AdaptiveColor {
	switch status {
	case constants.ThoughtStatusPending, constants.ThoughtStatusProcessing:
		return ColorPrimary
	case constants.ThoughtStatusCompleted:
		return ColorSuccess
	case constants.ThoughtStatusDeferred:
		return ColorWarning
	case constants.ThoughtStatusFailed:
		return ColorError
	}
	return ColorMuted
}
