// Package logging provides structured logging utilities for mailbuddy.
//
// All components log through log/slog. This package keeps attribute names
// consistent across the client, the dashboard workers and the backend, and
// makes sure personal data never reaches a log line in clear text.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithComponent(slog.Default(), "dashboard")
//	logger.Info("classified message",
//	    logging.MessageID(id),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("signed in", logging.UserHash(email))
//
// # Security Considerations
//
//   - User emails are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly, only their length
package logging
