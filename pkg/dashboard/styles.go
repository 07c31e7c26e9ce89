package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/greg-hellings/greencode/pkg/report"
)

var (
	green  = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	yellow = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	red    = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	muted  = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
)

type styles struct {
	Title      lipgloss.Style
	NavActive  lipgloss.Style
	NavItem    lipgloss.Style
	Error      lipgloss.Style
	Status     lipgloss.Style
	Muted      lipgloss.Style
	Sidebar    lipgloss.Style
	Selected   lipgloss.Style
	Pane       lipgloss.Style
	PaneTitle  lipgloss.Style
	TabActive  lipgloss.Style
	TabItem    lipgloss.Style
	Spinner    lipgloss.Style
	ScoreColor func(score int) lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(green),
		NavActive: lipgloss.NewStyle().Bold(true).Underline(true).Foreground(green).Padding(0, 1),
		NavItem:   lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		Error:     lipgloss.NewStyle().Foreground(red),
		Status:    lipgloss.NewStyle().Foreground(green),
		Muted:     lipgloss.NewStyle().Foreground(muted),
		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(green),
		Pane:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted),
		PaneTitle: lipgloss.NewStyle().Bold(true),
		TabActive: lipgloss.NewStyle().Bold(true).Foreground(green).Padding(0, 1),
		TabItem:   lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		Spinner:   lipgloss.NewStyle().Foreground(green),
		ScoreColor: func(score int) lipgloss.Style {
			switch {
			case score >= 80:
				return lipgloss.NewStyle().Foreground(green)
			case score >= 50:
				return lipgloss.NewStyle().Foreground(yellow)
			default:
				return lipgloss.NewStyle().Foreground(red)
			}
		},
	}
}

// scoreBar draws the gauge as a horizontal bar of the given width.
func (s styles) scoreBar(score, width int) string {
	if width < 10 {
		width = 10
	}
	filled := report.ClampScore(score) * width / report.MaxScore
	return s.ScoreColor(score).Render(strings.Repeat("█", filled)) +
		s.Muted.Render(strings.Repeat("░", width-filled))
}
