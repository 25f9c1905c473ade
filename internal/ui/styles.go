package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary    = lipgloss.Color("#F59E0B") // Amber accent
	Secondary  = lipgloss.Color("#7C3AED") // Violet
	Success    = lipgloss.Color("#10B981") // Emerald
	Warning    = lipgloss.Color("#FBBF24") // Light amber
	Error      = lipgloss.Color("#EF4444") // Red
	Muted      = lipgloss.Color("#6B7280") // Gray
	Foreground = lipgloss.Color("#F9FAFB") // Light gray
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)
)

// Box styles
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	SuccessBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Success).
			Padding(1, 2)
)

// Spinner style
var SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

// Emoji helpers for consistent iconography
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconConnect = "🔌"
	IconSwords  = "⚔️"
	IconCopy    = "📋"
	IconWaiting = "⏳"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}

func FormatError(err error) string {
	return fmt.Sprintf("%s %s", ErrorStyle.Render(IconError), ErrorStyle.Render(err.Error()))
}
