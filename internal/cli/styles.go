package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorPrimary = lipgloss.Color("#7C71F9")
	colorSuccess = lipgloss.Color("#34D399")
	colorError   = lipgloss.Color("#F87171")
	colorWarning = lipgloss.Color("#FBBF24")
	colorDim     = lipgloss.Color("#6B7280")
)

var (
	styleDim         = lipgloss.NewStyle().Foreground(colorDim)
	styleError       = lipgloss.NewStyle().Foreground(colorError)
	styleSuccess     = lipgloss.NewStyle().Foreground(colorSuccess)
	styleTableHeader = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
)

var tierStyles = map[string]lipgloss.Style{
	"full":       styleSuccess,
	"compressed": lipgloss.NewStyle().Foreground(colorWarning),
	"sparse":     styleDim,
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Headers(headers...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
}
