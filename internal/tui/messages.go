package tui

// Async message types for Bubble Tea commands.

// changedMsg is sent by the Notifier whenever dashboard state changes.
type changedMsg struct{}

type refreshedMsg struct {
	err error
}

type draftMsg struct {
	id   string
	text string
	err  error
}

type sentMsg struct {
	err error
}

// signedOutMsg ends the program after the session was revoked.
type signedOutMsg struct{}

type statusMsg string
