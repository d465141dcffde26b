package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/mailbuddy/internal/api"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingBottom(1)

	fraudStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 2)
)

func detailContent(m api.Message) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("From: %s\nSubject: %s\nCategory: %s",
		m.Sender, m.Subject, orDefault(m.Category, "..."))))
	b.WriteString("\n")
	if m.IsFake {
		b.WriteString(fraudStyle.Render("Warning: this message looks fraudulent."))
		b.WriteString("\n\n")
	}
	b.WriteString("Summary: ")
	b.WriteString(summaryText(m))
	b.WriteString("\n\n")
	b.WriteString(m.Text())
	return b.String()
}

func detailFooter() string {
	return footerStyle.Render("g: draft reply  r: refresh  esc: back  q: quit")
}

func replyHeader(m api.Message) string {
	return headerStyle.Render(fmt.Sprintf("To: %s\nSubject: Re: %s", m.Sender, m.Subject))
}

func replyFooter() string {
	return footerStyle.Render("ctrl+s: send  esc: discard")
}

func alertBox(text string) string {
	return alertStyle.Render(text + "\n\n" + footerStyle.Render("enter: dismiss"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
