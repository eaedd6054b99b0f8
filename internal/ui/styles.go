// Package ui renders snapshots for the terminal: sectioned summaries,
// spinners and the live watch view.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme colors
var (
	PrimaryColor = lipgloss.Color("#5B9BD5")
	AccentColor  = lipgloss.Color("#00D4AA")

	SuccessColor = lipgloss.Color("#2ECC71")
	WarningColor = lipgloss.Color("#F1C40F")
	ErrorColor   = lipgloss.Color("#E74C3C")

	TextColor    = lipgloss.Color("#FFFFFF")
	SubtextColor = lipgloss.Color("#B0B0B0")
	MutedColor   = lipgloss.Color("#6C6C6C")
	DimColor     = lipgloss.Color("#4A4A4A")
)

var (
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	PrimaryStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	AccentStyle  = lipgloss.NewStyle().Foreground(AccentColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	WhiteStyle   = lipgloss.NewStyle().Foreground(TextColor)
	GrayStyle    = lipgloss.NewStyle().Foreground(SubtextColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	DimStyle     = lipgloss.NewStyle().Foreground(DimColor)

	// Section frame and key/value parts
	BorderStyle    = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	TitleStyle     = lipgloss.NewStyle().Foreground(TextColor).Bold(true)
	BulletStyle    = lipgloss.NewStyle().Foreground(PrimaryColor)
	KeyStyle       = lipgloss.NewStyle().Foreground(TextColor)
	ValueStyle     = lipgloss.NewStyle().Foreground(SubtextColor)
	SeparatorStyle = lipgloss.NewStyle().Foreground(MutedColor)
)

const (
	IconSuccess = "✓"
	IconWarning = "⚠"
	IconError   = "✗"
	IconInfo    = "ℹ"
	IconBullet  = "•"
	IconUp      = "●"
	IconDown    = "○"
)

const (
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxHorizontal  = "─"

	progressFull  = "█"
	progressEmpty = "░"
)

// SectionWidth is the inner width of a section frame
const SectionWidth = 60

// TableWidth is the inner width of frames holding tables
const TableWidth = 80

// RenderBanner returns the styled banner
func RenderBanner(title string) string {
	return PrimaryStyle.Render("hostmon") + MutedStyle.Render(" · ") + TitleStyle.Render(title)
}

// RenderSectionStart returns a section header sized to width
func RenderSectionStart(title string, width int) string {
	dashes := width - lipgloss.Width(title) - 4
	if dashes < 0 {
		dashes = 0
	}
	return BorderStyle.Render(boxTopLeft+boxHorizontal+" ") +
		TitleStyle.Render(title) +
		BorderStyle.Render(" "+boxHorizontal+strings.Repeat(boxHorizontal, dashes)+boxTopRight)
}

// RenderSectionEnd returns a section footer sized to width
func RenderSectionEnd(width int) string {
	return BorderStyle.Render(boxBottomLeft + strings.Repeat(boxHorizontal, width) + boxBottomRight)
}

// RenderStatus returns a status line. Unknown kinds render as info.
func RenderStatus(kind, message string) string {
	icon, style := IconInfo, InfoStyle
	switch kind {
	case "success":
		icon, style = IconSuccess, SuccessStyle
	case "warning":
		icon, style = IconWarning, WarningStyle
	case "error":
		icon, style = IconError, ErrorStyle
	}
	return "  " + style.Render(icon) + " " + WhiteStyle.Render(message)
}

// RenderKeyValue returns one bulleted key/value line
func RenderKeyValue(key, value string) string {
	return "  " + BulletStyle.Render(IconBullet) + " " +
		KeyStyle.Render(key) + " " +
		SeparatorStyle.Render(":") + " " +
		ValueStyle.Render(value)
}

// RenderProgressBar returns a width-cell bar colored by percent
func RenderProgressBar(percent float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return LevelStyle(percent).Render(strings.Repeat(progressFull, filled)) +
		DimStyle.Render(strings.Repeat(progressEmpty, width-filled))
}

// LevelStyle picks green, yellow or red for a utilization percent
func LevelStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 90:
		return ErrorStyle
	case percent >= 70:
		return WarningStyle
	default:
		return SuccessStyle
	}
}
