// Package connection provides the HTTP client nonceguard-cli uses to talk
// to a nonceguard server.
//
// Responses are unwrapped from the server's JSON envelope; error envelopes
// become *APIError values carrying the server's error code.
package connection
