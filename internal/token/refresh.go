package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// refreshSecretBytes is the entropy of a refresh secret.
const refreshSecretBytes = 48

// NewRefreshSecret returns a random URL-safe opaque refresh secret.
func (j *JWT) NewRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshSecret returns the hex SHA-256 digest used to store and look up a secret.
func (j *JWT) HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
