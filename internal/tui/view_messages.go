package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/mailbuddy/internal/api"
)

// analyzingText stands in for the summary until classification completes.
const analyzingText = "Analyzing content..."

// messageItem wraps an api.Message for the list display.
type messageItem struct {
	api.Message
}

func (m messageItem) FilterValue() string { return m.Subject + " " + m.Sender }

func (m messageItem) Title() string {
	if m.IsFake {
		return "[Fraud] " + m.Subject
	}
	return m.Subject
}

func (m messageItem) Description() string {
	category := m.Category
	if category == "" {
		category = "..."
	}
	return fmt.Sprintf("%s | %s | %s", m.Sender, category, summaryText(m.Message))
}

func summaryText(m api.Message) string {
	if m.Summary != "" {
		return m.Summary
	}
	return analyzingText
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

func listFooter() string {
	return footerStyle.Render("enter: open  1-9/tab: switch view  r: refresh  /: filter  q: quit")
}

func messagesToItems(msgs []api.Message) []list.Item {
	items := make([]list.Item, len(msgs))
	for i, m := range msgs {
		items[i] = messageItem{m}
	}
	return items
}

// emptyText is shown instead of the list when a view has no messages.
func emptyText(loaded bool) string {
	if !loaded {
		return "Loading messages..."
	}
	return "No messages in this view."
}
