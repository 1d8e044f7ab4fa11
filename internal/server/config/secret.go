package config

import (
	"bytes"
	"os"
)

// ResolveSecret returns the installation secret, reading nonce.secret_file
// when set.
func ResolveSecret(cfg *ServerConfig) ([]byte, error) {
	if cfg.Nonce.SecretFile == "" {
		if len(cfg.Nonce.Secret) < MinSecretLength {
			return nil, invalid("nonce.secret must be at least %d bytes", MinSecretLength)
		}
		return []byte(cfg.Nonce.Secret), nil
	}

	data, err := os.ReadFile(cfg.Nonce.SecretFile)
	if err != nil {
		return nil, invalid("read nonce.secret_file: %v", err)
	}
	secret := bytes.TrimSpace(data)
	if len(secret) < MinSecretLength {
		return nil, invalid("nonce.secret_file must hold at least %d bytes", MinSecretLength)
	}
	return secret, nil
}
