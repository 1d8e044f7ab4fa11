package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
)

// APIKeyOutput is a newly generated API key. Secret is shown once; only
// SecretHash goes into the server configuration.
type APIKeyOutput struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Role       string `json:"role" yaml:"role"`
	Secret     string `json:"secret" yaml:"secret"`
	SecretHash string `json:"secret_hash" yaml:"secret_hash"`
	APIKey     string `json:"api_key" yaml:"api_key"`
}

// APIKeyCommand returns the apikey subcommand group.
func APIKeyCommand() *cli.Command {
	roles := make([]string, 0, len(domain.ValidRoles()))
	for _, r := range domain.ValidRoles() {
		roles = append(roles, string(r))
	}

	return &cli.Command{
		Name:  "apikey",
		Usage: "API key management",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Generate an API key for auth.api_keys",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "role",
						Usage: "One of " + strings.Join(roles, ", "),
						Value: string(domain.RoleIssuer),
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Human-readable name for the key",
					},
				},
				Action: apikeyCreate,
			},
		},
	}
}

func apikeyCreate(c *cli.Context) error {
	role := c.String("role")
	if !domain.IsValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	key, secret, err := domain.NewAPIKey(c.String("name"), domain.Role(role))
	if err != nil {
		return err
	}
	return render(c, APIKeyOutput{
		ID:         key.KeyID,
		Name:       key.Name,
		Role:       string(key.Role),
		Secret:     secret,
		SecretHash: key.SecretHash,
		APIKey:     key.KeyID + ":" + secret,
	})
}

// maskAPIKey hides the secret half of a "<key_id>:<secret>" pair.
func maskAPIKey(s string) string {
	if s == "" {
		return ""
	}
	keyID, secret, ok := strings.Cut(s, ":")
	if !ok {
		return domain.MaskAPIKeySecret(s)
	}
	return keyID + ":" + domain.MaskAPIKeySecret(secret)
}
