package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"onepager/internal/domain"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorOrange = lipgloss.Color("#fe8019")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
)

var (
	styleHeader = lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleOK     = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarn   = lipgloss.NewStyle().Foreground(colorRed)
)

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// paint renders s in style when stdout is a terminal, plain otherwise.
func paint(style lipgloss.Style, s string) string {
	if !stdoutIsTerminal() {
		return s
	}
	return style.Render(s)
}

// scoreStyle maps a scoring color name to a terminal style.
func scoreStyle(color string) lipgloss.Style {
	switch color {
	case "green":
		return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	case "yellow":
		return lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	case "orange":
		return lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	}
}

func header(text string) string {
	upper := strings.ToUpper(text)
	return paint(styleHeader, upper) + "\n" + paint(styleDim, strings.Repeat("─", len(upper)))
}

// progressBar draws one cell per phase, filled when completed.
func progressBar(p domain.Project) string {
	var b strings.Builder
	for n := 1; n <= domain.PhaseCount; n++ {
		if p.Phases.Get(n).Completed {
			b.WriteString(paint(styleOK, "■"))
		} else {
			b.WriteString(paint(styleDim, "□"))
		}
	}
	return b.String()
}
