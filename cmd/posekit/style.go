package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Output formats for snapshot printing.
const (
	formatAuto   = "auto"
	formatJSON   = "json"
	formatPretty = "pretty"
)

const (
	colorLabel   = "#888888"
	colorValue   = "#4ecdc4"
	colorWarning = "#ff6b6b"
	colorStatus  = "#45b7d1"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorStatus))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorLabel))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorValue))
	peakStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWarning))
)

// resolveFormat turns "auto" into pretty for terminals and json otherwise.
func resolveFormat(format string, out io.Writer) (string, error) {
	switch format {
	case formatJSON, formatPretty:
		return format, nil
	case formatAuto, "":
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return formatPretty, nil
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

func field(label, value string) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(value)
}

// renderDemoLine formats one demo snapshot for a terminal.
func renderDemoLine(line demoLine) string {
	m := line.Metrics
	parts := []string{
		statusStyle.Render(fmt.Sprintf("[%s %s]", line.Status, line.Tier)),
		field("t", fmt.Sprintf("%4.0fs", m.SessionDuration)),
		field("hit", fmt.Sprintf("%5.1f%%", m.HitRate)),
		field("rt", fmt.Sprintf("%4.0fms", m.ReactionTime)),
		field("acc", fmt.Sprintf("%5.1f%%", m.Accuracy)),
		field("fatigue", fmt.Sprintf("%3.0f%%", m.FatigueLevel)),
		field("kcal", fmt.Sprintf("%5.1f", m.CaloriesBurned)),
		field("joints", fmt.Sprintf("%2d", line.Joints)),
	}
	if line.Peak {
		parts = append(parts, peakStyle.Render("PEAK"))
	}
	return strings.Join(parts, "  ")
}
