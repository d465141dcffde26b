package backend

import (
	"context"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/gmail"
)

// Mailbox is the per-request view of the caller's mail account.
type Mailbox interface {
	ListMessages(ctx context.Context, maxResults int64) ([]api.Message, error)
	SendEmail(ctx context.Context, msg *gmail.EmailMessage) (string, error)
}

// MailboxFactory opens the mailbox owned by accessToken.
type MailboxFactory func(ctx context.Context, accessToken string) (Mailbox, error)

// GmailMailboxes opens Gmail clients. opts apply to every client.
func GmailMailboxes(opts ...gmail.Option) MailboxFactory {
	return func(ctx context.Context, accessToken string) (Mailbox, error) {
		c, err := gmail.NewClient(ctx, accessToken, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
