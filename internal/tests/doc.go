// Package tests holds end-to-end tests that wire configuration, the nonce
// service, the HTTP router and the CLI client together.
package tests
