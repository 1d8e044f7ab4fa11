// Package config provides server configuration for nonceguard.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation
//   - sanitize.go: Masked view for logging and `config show`
//   - load.go: Loading via internal/infra/confloader
//   - secret.go: Installation secret resolution
package config
