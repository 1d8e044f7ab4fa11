package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"
)

// API key constants.
const (
	// APIKeyIDPrefix is the prefix for API key IDs (public, uses hyphen).
	APIKeyIDPrefix = "ngak-"

	// APIKeySecretPrefix is the prefix for API key secrets (sensitive, uses underscore).
	APIKeySecretPrefix = "ngas_"

	// SecretLength is the number of random bytes in a generated secret.
	SecretLength = 32
)

// Argon2 parameters for API key secret hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

// Role defines the permission level of an API key.
type Role string

const (
	// RoleMetrics may only scrape /metrics.
	RoleMetrics Role = "metrics"

	// RoleVerifier may verify nonces, for backends that check but never issue.
	RoleVerifier Role = "verifier"

	// RoleIssuer may issue and verify nonces.
	RoleIssuer Role = "issuer"

	// RoleAdmin may do everything.
	RoleAdmin Role = "admin"
)

// ValidRoles returns all valid roles.
func ValidRoles() []Role {
	return []Role{RoleMetrics, RoleVerifier, RoleIssuer, RoleAdmin}
}

// IsValidRole checks if a string is a valid role.
func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleMetrics, RoleVerifier, RoleIssuer, RoleAdmin:
		return true
	}
	return false
}

// Permission represents an action that can be performed.
type Permission string

const (
	PermNonceIssue  Permission = "nonce.issue"
	PermNonceVerify Permission = "nonce.verify"
	PermMetricsRead Permission = "metrics.read"
)

// rolePermissions defines the permissions granted to each role.
var rolePermissions = map[Role][]Permission{
	RoleMetrics:  {PermMetricsRead},
	RoleVerifier: {PermNonceVerify, PermMetricsRead},
	RoleIssuer:   {PermNonceIssue, PermNonceVerify, PermMetricsRead},
	RoleAdmin:    {PermNonceIssue, PermNonceVerify, PermMetricsRead},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// IsValidAPIKeyID checks if a string is a valid API key ID:
// ngak- followed by a lowercase ULID.
func IsValidAPIKeyID(id string) bool {
	if !strings.HasPrefix(id, APIKeyIDPrefix) || len(id) != len(APIKeyIDPrefix)+ulid.EncodedSize {
		return false
	}
	if strings.ToLower(id) != id {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(APIKeyIDPrefix):]))
	return err == nil
}

// MaskAPIKeySecret masks an API key secret for safe logging.
func MaskAPIKeySecret(secret string) string {
	if strings.HasPrefix(secret, APIKeySecretPrefix) && len(secret) > len(APIKeySecretPrefix)+6 {
		body := secret[len(APIKeySecretPrefix):]
		return APIKeySecretPrefix + body[:3] + "..." + body[len(body)-3:]
	}
	return "***REDACTED***"
}

// APIKey is a credential accepted by the nonce API. Only the Argon2id hash
// of the secret is kept.
type APIKey struct {
	// KeyID is the unique identifier (public).
	KeyID string `json:"key_id" yaml:"id"`

	// Name is the human-readable name for the key.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// SecretHash is the Argon2id hash of the secret (never exposed).
	SecretHash string `json:"-" yaml:"secret_hash"`

	// Role defines the permission level.
	Role Role `json:"role" yaml:"role"`

	// Disabled keys are rejected.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// NewAPIKey creates a key with a generated ID and secret.
// Returns the key and the plaintext secret, which is not recoverable later.
func NewAPIKey(name string, role Role) (*APIKey, string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}

	secretBytes := make([]byte, SecretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}
	plainSecret := APIKeySecretPrefix + base64.RawURLEncoding.EncodeToString(secretBytes)

	secretHash, err := HashAPIKeySecret(plainSecret)
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}

	return &APIKey{
		KeyID:      APIKeyIDPrefix + strings.ToLower(id.String()),
		Name:       name,
		SecretHash: secretHash,
		Role:       role,
	}, plainSecret, nil
}

// HashAPIKeySecret computes an Argon2id hash of secret in the format
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func HashAPIKeySecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// argon2Hash is a decoded Argon2id hash string.
type argon2Hash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parseArgon2Hash(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("want $argon2id$v=..$m=..,t=..,p=..$salt$hash")
	}
	if parts[1] != "argon2id" {
		return nil, fmt.Errorf("algorithm %q is not argon2id", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("unsupported version %q", parts[2])
	}

	h := &argon2Hash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil {
		return nil, fmt.Errorf("parameters %q: %v", parts[3], err)
	}
	if h.memory == 0 || h.time == 0 || h.parallelism == 0 {
		return nil, fmt.Errorf("parameters %q must be positive", parts[3])
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("salt: %v", err)
	}
	if h.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("hash: %v", err)
	}
	if len(h.hash) == 0 {
		return nil, fmt.Errorf("hash is empty")
	}
	return h, nil
}

// VerifySecret reports whether secret matches the key's hash.
func (k *APIKey) VerifySecret(secret string) bool {
	h, err := parseArgon2Hash(k.SecretHash)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(secret), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.hash)))
	return subtle.ConstantTimeCompare(computed, h.hash) == 1
}

// Validate validates the API key fields.
func (k *APIKey) Validate() error {
	var violations []string

	if k.KeyID == "" {
		violations = append(violations, "id is required")
	} else if !IsValidAPIKeyID(k.KeyID) {
		violations = append(violations, "id format invalid")
	}

	if k.SecretHash == "" {
		violations = append(violations, "secret_hash is required")
	} else if _, err := parseArgon2Hash(k.SecretHash); err != nil {
		violations = append(violations, "secret_hash: "+err.Error())
	}

	if !IsValidRole(string(k.Role)) {
		violations = append(violations, fmt.Sprintf("invalid role %q", k.Role))
	}

	if len(violations) > 0 {
		return ErrAPIKeyValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}
