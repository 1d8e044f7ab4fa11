// Package command provides CLI command definitions for nonceguard-cli.
//
// Commands are built with urfave/cli/v2:
//
//   - root.go: App, global flags and CLI config loading
//   - nonce.go: local issue and verify against an installation secret
//   - remote.go: issue, verify, guard and health against a running server
//   - config.go: server config validation and display
//   - apikey.go: API key generation for the server's auth.api_keys
//
// verify and remote verify exit with status 1 when the nonce is invalid,
// so they can gate shell scripts.
package command
