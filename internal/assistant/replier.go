package assistant

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// Replier drafts a reply to a message.
type Replier interface {
	Reply(ctx context.Context, req ReplyInput) (string, error)
}

// ReplyInput is the message being answered.
type ReplyInput struct {
	Subject string
	Body    string
	To      string
}

// TemplateReplier writes short, polite replies from a few templates.
type TemplateReplier struct {
	// Signature closes every reply.
	Signature string
}

// NewTemplateReplier returns a replier that signs with "Best regards".
func NewTemplateReplier() *TemplateReplier {
	return &TemplateReplier{Signature: "Best regards"}
}

// Reply implements Replier.
func (t *TemplateReplier) Reply(ctx context.Context, in ReplyInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := strings.ToLower(in.Subject + " " + truncate(in.Body, MaxInputLength))
	subject := strings.TrimSpace(in.Subject)

	var body string
	switch {
	case containsAny(text, []string{"interview", "meeting", "call", "schedule", "available"}):
		body = "Thank you for reaching out. The proposed time works for me, and I look forward to speaking with you. " +
			"Please let me know if anything changes."
	case strings.Contains(text, "?"):
		body = fmt.Sprintf("Thank you for your message about %q. I will look into your question and get back to you shortly.", subject)
	case subject != "":
		body = fmt.Sprintf("Thank you for your message about %q. I have received it and will follow up soon.", subject)
	default:
		body = "Thank you for your message. I have received it and will follow up soon."
	}

	return fmt.Sprintf("Hi %s,\n\n%s\n\n%s", greetingName(in.To), body, t.Signature), nil
}

// greetingName picks the first name of the recipient, falling back to the
// local part of the address.
func greetingName(to string) string {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		if strings.Contains(to, "@") {
			return strings.SplitN(to, "@", 2)[0]
		}
		return "there"
	}
	if fields := strings.Fields(addr.Name); len(fields) > 0 {
		return fields[0]
	}
	if local, _, ok := strings.Cut(addr.Address, "@"); ok && local != "" {
		return local
	}
	return "there"
}
