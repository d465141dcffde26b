// Package server holds the HTTP plumbing shared by the mailbuddy backend:
// the API server wrapper with its timeouts, Kubernetes-style health
// endpoints, and a dedicated Prometheus metrics server.
//
// Metrics are served on their own port so operational data is never exposed
// on the API listener.
package server
