// Package tui renders the dashboard in the terminal with Bubble Tea.
//
// The model never talks to the backend directly. It reads snapshots from a
// Dashboard and turns key presses into commands that call it; the dashboard
// reports background changes through a Notifier.
package tui
