// Package api is the client for the assistant backend.
//
// Every request carries the signed-in user's access token both as a bearer
// token and in the "token" header the backend reads it from. The client does
// not retry; callers decide what a failure means for them.
package api
