// Package dashboard keeps the client's view of the inbox up to date.
//
// A Controller polls the backend for messages, merges each fetch into its
// local state and feeds messages it has not seen before to a bounded
// enrichment queue. Queue workers classify one message at a time per worker,
// paced by a shared rate limiter, and write the result back into the state.
// A failed or inconclusive classification makes the message eligible again
// on the next poll.
package dashboard
