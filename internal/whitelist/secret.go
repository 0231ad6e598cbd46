package whitelist

import (
	"crypto/rand"
	"encoding/hex"
)

const secretByteLength = 16

// SecretProvider issues opaque lookup secrets for new submissions.
type SecretProvider interface {
	NewSecret() (string, error)
}

type randomSecretProvider struct{}

// NewRandomSecretProvider constructs a SecretProvider backed by crypto/rand.
// Secrets are 32 lowercase hex characters (128 bits of entropy).
func NewRandomSecretProvider() SecretProvider {
	return &randomSecretProvider{}
}

func (p *randomSecretProvider) NewSecret() (string, error) {
	buf := make([]byte, secretByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
