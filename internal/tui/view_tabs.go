package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/mailbuddy/internal/dashboard"
)

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// tabBar renders every tab with its key and message count.
func tabBar(active dashboard.Tab, counts map[dashboard.Tab]int) string {
	parts := make([]string, len(dashboard.Tabs))
	for i, t := range dashboard.Tabs {
		label := fmt.Sprintf("%d %s (%d)", i+1, t.Label(), counts[t])
		if t == active {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return strings.Join(parts, "")
}

// tabIndex returns the position of t in dashboard.Tabs.
func tabIndex(t dashboard.Tab) int {
	for i, tab := range dashboard.Tabs {
		if tab == t {
			return i
		}
	}
	return 0
}
