// Package auth implements the OAuth device-authorization grant: request
// a user code, let the user approve it in a browser, and poll the token
// endpoint until a terminal outcome.
//
// One attempt is active at a time. Starting a new attempt supersedes
// the previous one; a tick already in flight for a superseded attempt
// completes but its result is discarded.
package auth
