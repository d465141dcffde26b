// Package auth signs the user in with Google and keeps the session's access
// token fresh.
//
// A Gateway performs the authorization-code exchange and produces a Session.
// The Session hands out the current access token, refreshing it with the
// stored refresh token once it has expired. A failed refresh does not return
// an error from Session.Token; the token is flagged with
// RefreshAccessTokenError instead and callers are expected to sign out.
//
// Sessions are persisted through a Store: FileStore keeps an HS256-signed JWT
// on disk and SQLiteStore keeps a row in a local SQLite database.
package auth
