// Package config provides the nonceguard-cli preferences file
// (~/.nonceguard/cli.yaml): default server, output format and secret file.
// Command-line flags and NONCEGUARD_* environment variables take
// precedence over the file.
package config
