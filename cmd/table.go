package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
	nameColor    = lipgloss.Color("#BD93F9") // Purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	borderColor  = lipgloss.Color("#6272A4") // Muted purple
	summaryColor = lipgloss.Color("#8BE9FD") // Cyan accent
)

type column struct {
	title string
	width int
	color lipgloss.Color
	right bool
}

// printTable renders rows under cols. Cells wider than their column are cut.
func printTable(w io.Writer, cols []column, rows [][]string) {
	headerStyle := lipgloss.NewStyle().
		Foreground(headerColor).
		Bold(true).
		Padding(0, 1)
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	headers := make([]string, len(cols))
	separatorParts := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = headerStyle.Width(c.width).Render(c.title)
		separatorParts[i] = strings.Repeat("─", c.width)
	}
	fmt.Fprintln(w, strings.Join(headers, borderStyle.Render("│")))
	fmt.Fprintln(w, borderStyle.Render(strings.Join(separatorParts, "┼")))

	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			style := lipgloss.NewStyle().
				Foreground(c.color).
				Padding(0, 1).
				Width(c.width)
			if c.right {
				style = style.Align(lipgloss.Right)
			}

			var value string
			if i < len(row) {
				value = clip(row[i], c.width-2)
			}
			cells[i] = style.Render(value)
		}
		fmt.Fprintln(w, strings.Join(cells, borderStyle.Render("│")))
	}
}

func printSummary(w io.Writer, text string) {
	summaryStyle := lipgloss.NewStyle().
		Foreground(summaryColor).
		Italic(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, summaryStyle.Render(text))
}

// clip shortens s to one line of at most n runes.
func clip(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
