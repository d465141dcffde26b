// Package google holds the Google OAuth client configuration shared by the
// sign-in flow and the backend's Gmail access.
package google
