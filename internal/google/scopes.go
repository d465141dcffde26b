package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// DefaultOAuthScopes are requested at sign-in. They cover the user's profile
// (for the session's display name and e-mail) plus reading, drafting and
// sending mail.
var DefaultOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	gmail.GmailReadonlyScope,
	gmail.GmailComposeScope,
	gmail.GmailSendScope,
}
