// Package gmail wraps the Gmail API for the backend.
//
// A Client is built per request from the caller's access token; the backend
// never stores or refreshes provider tokens. It lists the newest inbox
// messages as api.Message values and sends plain-text replies.
//
// Example usage:
//
//	client, err := gmail.NewClient(ctx, accessToken)
//	if err != nil {
//	    return err
//	}
//	msgs, err := client.ListMessages(ctx, 20)
//	if err != nil {
//	    return err
//	}
//
//	id, err := client.SendEmail(ctx, &gmail.EmailMessage{
//	    To:      []string{"recipient@example.com"},
//	    Subject: "Re: Hello",
//	    Body:    "Thanks!",
//	})
package gmail
