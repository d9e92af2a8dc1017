package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.help).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	return t.String()
}

// Pair is one labelled value for [KeyValues].
type Pair struct {
	Key   string
	Value string
}

// KeyValues renders pairs one per line with the labels padded to the same width.
func KeyValues(pairs ...Pair) string {
	width := 0
	for _, p := range pairs {
		width = max(width, lipgloss.Width(p.Key))
	}

	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		label := Styles.Label(p.Key + ":")
		pad := strings.Repeat(" ", width-lipgloss.Width(p.Key)+1)
		lines = append(lines, label+pad+p.Value)
	}
	return strings.Join(lines, "\n")
}

// Truncate shortens s to n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
