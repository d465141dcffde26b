package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/dashboard"
)

// Dashboard is the controller surface the UI needs.
type Dashboard interface {
	Messages() []api.Message
	Message(id string) (api.Message, bool)
	Refresh(ctx context.Context) error
	DraftReply(ctx context.Context, msg api.Message) (string, error)
	SendReply(ctx context.Context, msg api.Message, text string) error
}

type viewState int

const (
	viewList   viewState = iota // messages of the active tab
	viewDetail                  // a single message
	viewReply                   // editing a drafted reply
)

const statusTimeout = 3 * time.Second

// Model is the Bubble Tea model of the dashboard.
type Model struct {
	ctx  context.Context
	dash Dashboard

	tab      dashboard.Tab
	counts   map[dashboard.Tab]int
	loaded   bool
	view     viewState
	selected string

	list   list.Model
	detail viewport.Model
	reply  textarea.Model

	// alert blocks all input until dismissed.
	alert  string
	status string
	busy   bool

	// SignedOut is set when the session ended while the program ran.
	SignedOut bool

	width, height int
}

// New returns a model showing the inbox tab of d. ctx bounds every call the
// model makes.
func New(ctx context.Context, d Dashboard) *Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = dashboard.TabInbox.Label()
	l.SetShowStatusBar(false)
	// q is handled by the model so it can quit from every view
	l.KeyMap.Quit.SetEnabled(false)

	ta := textarea.New()
	ta.Placeholder = "Write your reply..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	return &Model{
		ctx:    ctx,
		dash:   d,
		tab:    dashboard.TabInbox,
		counts: map[dashboard.Tab]int{},
		list:   l,
		detail: viewport.New(0, 0),
		reply:  ta,
	}
}

func (m *Model) Init() tea.Cmd {
	return m.reload()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4) // tab bar + footer
		m.detail.Width = msg.Width
		m.detail.Height = msg.Height - 4
		m.reply.SetWidth(msg.Width)
		m.reply.SetHeight(msg.Height - 8) // reply header + footer
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		return m, m.reload()

	case refreshedMsg:
		m.busy = false
		if errors.Is(msg.err, dashboard.ErrSignedOut) {
			m.SignedOut = true
			return m, tea.Quit
		}
		if msg.err != nil {
			m.status = fmt.Sprintf("Refresh failed: %v", msg.err)
			return m, clearStatusAfter(statusTimeout)
		}
		return m, m.reload()

	case draftMsg:
		m.busy = false
		m.status = ""
		if msg.err != nil {
			m.alert = fmt.Sprintf("Failed to generate reply: %v", msg.err)
			return m, nil
		}
		if m.view != viewDetail || msg.id != m.selected {
			return m, nil
		}
		m.reply.SetValue(msg.text)
		m.view = viewReply
		return m, m.reply.Focus()

	case sentMsg:
		m.busy = false
		if msg.err != nil {
			m.status = ""
			m.alert = fmt.Sprintf("Failed to send reply: %v", msg.err)
			return m, nil
		}
		m.reply.Reset()
		m.reply.Blur()
		m.view = viewDetail
		m.status = "Reply sent!"
		return m, clearStatusAfter(statusTimeout)

	case signedOutMsg:
		m.SignedOut = true
		return m, tea.Quit

	case statusMsg:
		if !m.busy {
			m.status = string(msg)
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewList:
		m.list, cmd = m.list.Update(msg)
	case viewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case viewReply:
		m.reply, cmd = m.reply.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.alert != "" {
		switch key {
		case "enter", "esc", " ":
			m.alert = ""
		}
		return m, nil
	}

	switch m.view {
	case viewList:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "tab":
			return m, m.selectTab((tabIndex(m.tab) + 1) % len(dashboard.Tabs))
		case "shift+tab":
			return m, m.selectTab((tabIndex(m.tab) + len(dashboard.Tabs) - 1) % len(dashboard.Tabs))
		case "r":
			return m, m.refreshCmd()
		case "enter":
			return m.openSelected()
		}
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(dashboard.Tabs) {
			return m, m.selectTab(n - 1)
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case viewDetail:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewList
			m.selected = ""
			return m, nil
		case "r":
			return m, m.refreshCmd()
		case "g":
			return m, m.draftCmd()
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case viewReply:
		switch key {
		case "esc":
			m.reply.Reset()
			m.reply.Blur()
			m.view = viewDetail
			return m, nil
		case "ctrl+s":
			return m, m.sendCmd()
		}
		var cmd tea.Cmd
		m.reply, cmd = m.reply.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) selectTab(i int) tea.Cmd {
	m.tab = dashboard.Tabs[i]
	m.list.Title = m.tab.Label()
	m.list.ResetSelected()
	return m.reload()
}

func (m *Model) openSelected() (tea.Model, tea.Cmd) {
	selected := m.list.SelectedItem()
	if selected == nil {
		return m, nil
	}
	mi := selected.(messageItem)
	m.selected = mi.ID
	m.detail.SetContent(detailContent(mi.Message))
	m.detail.GotoTop()
	m.view = viewDetail
	return m, nil
}

// reload pulls a fresh snapshot into the list and the open message.
func (m *Model) reload() tea.Cmd {
	msgs := m.dash.Messages()
	m.loaded = m.loaded || len(msgs) > 0
	m.counts = dashboard.Counts(msgs)

	if m.selected != "" {
		if msg, ok := m.dash.Message(m.selected); ok {
			m.detail.SetContent(detailContent(msg))
		}
	}
	return m.list.SetItems(messagesToItems(dashboard.Filter(msgs, m.tab)))
}

// Commands

func (m *Model) refreshCmd() tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	m.status = "Refreshing..."
	return func() tea.Msg {
		return refreshedMsg{err: m.dash.Refresh(m.ctx)}
	}
}

func (m *Model) draftCmd() tea.Cmd {
	msg, ok := m.dash.Message(m.selected)
	if !ok || m.busy {
		return nil
	}
	m.busy = true
	m.status = "Drafting reply..."
	return func() tea.Msg {
		text, err := m.dash.DraftReply(m.ctx, msg)
		return draftMsg{id: msg.ID, text: text, err: err}
	}
}

func (m *Model) sendCmd() tea.Cmd {
	msg, ok := m.dash.Message(m.selected)
	if !ok || m.busy {
		return nil
	}
	text := m.reply.Value()
	m.busy = true
	m.status = "Sending..."
	return func() tea.Msg {
		return sentMsg{err: m.dash.SendReply(m.ctx, msg, text)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the active view.
func (m *Model) View() string {
	if m.SignedOut {
		return "Your session has expired. Run `mailbuddy login` to sign in again.\n"
	}

	var b strings.Builder
	b.WriteString(tabBar(m.tab, m.counts))
	b.WriteString("\n")

	if m.alert != "" {
		b.WriteString(alertBox(m.alert))
		return b.String()
	}

	switch m.view {
	case viewList:
		if len(m.list.Items()) == 0 && m.list.FilterState() == list.Unfiltered {
			b.WriteString(emptyText(m.loaded))
			b.WriteString("\n")
		} else {
			b.WriteString(m.list.View())
			b.WriteString("\n")
		}
		b.WriteString(listFooter())
	case viewDetail:
		b.WriteString(m.detail.View())
		b.WriteString("\n")
		b.WriteString(detailFooter())
	case viewReply:
		if msg, ok := m.dash.Message(m.selected); ok {
			b.WriteString(replyHeader(msg))
			b.WriteString("\n")
		}
		b.WriteString(m.reply.View())
		b.WriteString("\n")
		b.WriteString(replyFooter())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}
