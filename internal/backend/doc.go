// Package backend serves the assistant REST API the dashboard talks to.
//
// Routes:
//
//	GET  /emails?max_results=20   newest messages of the caller's mailbox
//	POST /classify                category, summary and fraud flag of one message
//	POST /generate-reply          drafted reply text
//	POST /send-reply              sends a reply from the caller's mailbox
//
// Mailbox routes need the caller's Google access token in the "token" header.
// Errors are JSON objects of the form {"detail": "..."}.
package backend
