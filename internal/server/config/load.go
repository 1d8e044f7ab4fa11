package config

import (
	"github.com/yndnr/nonceguard-go/internal/infra/confloader"
)

// Load builds a ServerConfig from defaults, the YAML file at path (if
// any), NONCEGUARD_ environment variables, and overlay, then verifies it.
func Load(path string, overlay map[string]any) (*ServerConfig, *confloader.Loader, error) {
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverlay(overlay),
	)

	cfg := Default()
	if err := loader.Load(cfg); err != nil {
		return nil, nil, invalid("%v", err)
	}
	if err := Verify(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// Reload re-reads every source of loader into a fresh default config and
// verifies it.
func Reload(loader *confloader.Loader) (*ServerConfig, error) {
	cfg := Default()
	if err := loader.Reload(cfg); err != nil {
		return nil, invalid("%v", err)
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
