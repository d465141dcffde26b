package gmail

import (
	"encoding/base64"
	"mime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func TestHeaderValue(t *testing.T) {
	tests := []struct {
		name       string
		msg        *gmail.Message
		headerName string
		want       string
	}{
		{
			name: "existing header",
			msg: &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "sender@example.com"},
				{Name: "Subject", Value: "Test Subject"},
			}}},
			headerName: "From",
			want:       "sender@example.com",
		},
		{
			name: "case insensitive",
			msg: &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "subject", Value: "lower"},
			}}},
			headerName: "Subject",
			want:       "lower",
		},
		{
			name: "missing header",
			msg: &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "sender@example.com"},
			}}},
			headerName: "Cc",
			want:       "",
		},
		{
			name:       "nil payload",
			msg:        &gmail.Message{},
			headerName: "From",
			want:       "",
		},
		{
			name:       "nil message",
			headerName: "From",
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeaderValue(tt.msg, tt.headerName))
		})
	}
}

func TestEncodeRFC2047(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantASCII bool
	}{
		{"plain ASCII text", "Simple Subject", true},
		{"reply prefix", "Re: Meeting tomorrow", true},
		{"german umlauts", "Grüße aus München", false},
		{"emoji", "Launch 🚀", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeRFC2047(tt.input)
			if tt.wantASCII {
				assert.Equal(t, tt.input, got)
				return
			}
			assert.NotEqual(t, tt.input, got)

			decoded, err := new(mime.WordDecoder).DecodeHeader(got)
			require.NoError(t, err)
			assert.Equal(t, tt.input, decoded)
		})
	}
}

func TestBuildRaw(t *testing.T) {
	raw, err := BuildRaw(&EmailMessage{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Re: Hello",
		Body:    "Thanks!",
	})
	require.NoError(t, err)

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t,
		"To: a@example.com, b@example.com\r\n"+
			"Subject: Re: Hello\r\n"+
			"Content-Type: text/plain; charset=\"UTF-8\"\r\n"+
			"MIME-Version: 1.0\r\n"+
			"\r\n"+
			"Thanks!",
		string(decoded))
}

func TestMessageFromGmail(t *testing.T) {
	m := MessageFromGmail(&gmail.Message{
		Id:      "abc",
		Snippet: "Tom &amp; Jerry",
		Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
			{Name: "From", Value: "Tom <tom@example.com>"},
		}},
	})

	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, DefaultSubject, m.Subject)
	assert.Equal(t, "Tom <tom@example.com>", m.Sender)
	assert.Equal(t, "Tom & Jerry", m.Snippet)
	assert.Equal(t, m.Snippet, m.Body)
	assert.False(t, m.Classified())
}
