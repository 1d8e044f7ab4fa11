package config

import "github.com/yndnr/nonceguard-go/internal/core/domain"

// APIKeys converts the configured keys to domain keys. It does not validate
// them; Verify does.
func APIKeys(cfg *ServerConfig) []*domain.APIKey {
	keys := make([]*domain.APIKey, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		keys = append(keys, &domain.APIKey{
			KeyID:      k.ID,
			Name:       k.Name,
			SecretHash: k.SecretHash,
			Role:       domain.Role(k.Role),
			Disabled:   k.Disabled,
		})
	}
	return keys
}
