// Package cmd implements the command-line interface for mailbuddy.
//
// This package provides the following commands:
//   - login: Sign in with Google and save the session
//   - logout: Delete the saved session
//   - dashboard: Show the categorized inbox in the terminal
//   - inbox: Fetch, classify and print one view of the inbox
//   - serve: Start the assistant backend
//   - version: Display version information
//
// The dashboard command is the default command when no subcommand is specified.
package cmd
