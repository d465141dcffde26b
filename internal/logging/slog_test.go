package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := WithOperation(New(&buf, false), "dashboard.refresh")
	logger.Info("done")
	assert.Contains(t, buf.String(), "operation=dashboard.refresh")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New(&buf, false), "auth")
	logger.Info("done")
	assert.Contains(t, buf.String(), "component=auth")
}

func TestNewDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	New(&buf, true).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mailbuddy.log")
	logger, closer, err := NewFile(path, false)
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closer.Close())
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		value string
	}{
		{"operation", Operation("list"), KeyOperation, "list"},
		{"component", Component("tui"), KeyComponent, "tui"},
		{"message id", MessageID("18c2"), KeyMessageID, "18c2"},
		{"category", Category("Work"), KeyCategory, "Work"},
		{"tab", Tab("spam"), KeyTab, "spam"},
		{"status", Status(StatusSuccess), KeyStatus, StatusSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.key)
			}
			if tt.attr.Value.String() != tt.value {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.value)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	attr := Duration(2 * time.Second)
	assert.Equal(t, KeyDuration, attr.Key)
	assert.Equal(t, 2*time.Second, attr.Value.Duration())
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("test error"))
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	attr = Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		email    string
		wantLen  int
		hasValue bool
	}{
		{"jane@example.com", 21, true}, // "user:" + 16 hex chars
		{"user@gmail.com", 21, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			result := AnonymizeEmail(tt.email)
			if !tt.hasValue {
				assert.Empty(t, result)
				return
			}
			assert.Len(t, result, tt.wantLen)
			assert.True(t, strings.HasPrefix(result, "user:"))
		})
	}

	assert.Equal(t, AnonymizeEmail("test@example.com"), AnonymizeEmail("TEST@example.com"))
	assert.NotEqual(t, AnonymizeEmail("test@example.com"), AnonymizeEmail("other@example.com"))
}

func TestUserHash(t *testing.T) {
	attr := UserHash("jane@example.com")
	assert.Equal(t, KeyUserHash, attr.Key)
	assert.Len(t, attr.Value.String(), 21)
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"a_very_long_token_string", "[token:24 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.expected)
			}
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"Jane Doe <jane@Example.com>", "example.com"},
		{"invalid", ""},
		{"", ""},
		{"@", ""},
		{"user@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ExtractDomain(tt.email); got != tt.expected {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, got, tt.expected)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	attr := Domain("jane@example.com")
	assert.Equal(t, "sender_domain", attr.Key)
	assert.Equal(t, "example.com", attr.Value.String())
}
