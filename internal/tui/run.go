package tui

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teemow/mailbuddy/internal/dashboard"
)

// Notifier forwards dashboard changes to a running program. Pass Changed to
// dashboard.WithOnChange before the program exists; calls made before a
// program is attached are dropped.
type Notifier struct {
	program atomic.Pointer[tea.Program]
}

// Changed asks the program to re-render.
func (n *Notifier) Changed() {
	if p := n.program.Load(); p != nil {
		p.Send(changedMsg{})
	}
}

func (n *Notifier) attach(p *tea.Program) {
	n.program.Store(p)
}

// Controller is a Dashboard that also runs its own polling loop.
type Controller interface {
	Dashboard
	Run(ctx context.Context) error
}

// Run shows the dashboard until the user quits or the session ends, in
// which case it returns dashboard.ErrSignedOut. The controller loop runs
// for as long as the program does.
func Run(ctx context.Context, c Controller, n *Notifier, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, c)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)
	if n != nil {
		n.attach(p)
	}

	loopErr := make(chan error, 1)
	go func() {
		err := c.Run(ctx)
		if errors.Is(err, dashboard.ErrSignedOut) {
			p.Send(signedOutMsg{})
		}
		loopErr <- err
	}()

	_, err := p.Run()
	cancel()
	if runErr := <-loopErr; errors.Is(runErr, dashboard.ErrSignedOut) || m.SignedOut {
		return dashboard.ErrSignedOut
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard UI failed: %w", err)
	}
	return nil
}
