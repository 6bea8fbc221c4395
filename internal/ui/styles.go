package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// TitleStyle uses ANSI 6 (cyan), readable on light and dark terminals.
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle is dimmed gray so descriptions stay secondary.
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	ValueStyle = lipgloss.NewStyle().Bold(true)
	BarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	WarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// KV renders an aligned "label  value" row.
func KV(label string, value any) string {
	return fmt.Sprintf("  %s %s",
		DescStyle.Render(fmt.Sprintf("%-18s", label)),
		ValueStyle.Render(fmt.Sprint(value)))
}

// Bar renders n scaled against max as a block bar of at most width cells.
func Bar(n, max, width int) string {
	if n <= 0 || max <= 0 || width <= 0 {
		return ""
	}
	cells := n * width / max
	if cells == 0 {
		cells = 1
	}
	if cells > width {
		cells = width
	}
	return BarStyle.Render(strings.Repeat("█", cells))
}
