// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Map overlays (command-line flags, tests)
//  2. Environment variables (NONCEGUARD_ prefix)
//  3. YAML configuration file
//  4. Defaults already present in the target struct
//
// Environment variables nest with a double underscore so that single
// underscores stay inside key names:
//
//	NONCEGUARD_NONCE__SECRET_FILE=/run/secrets/nonce  ->  nonce.secret_file
//	NONCEGUARD_REPLAY__REDIS__ADDR=redis:6379         ->  replay.redis.addr
//
// Watcher reports changes to the configuration file via fsnotify.
package confloader
