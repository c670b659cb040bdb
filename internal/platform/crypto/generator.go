// File: internal/platform/crypto/generator.go
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MinSecretBytes is the smallest HMAC key GenerateSigningSecret will produce.
const MinSecretBytes = 32

// GenerateSigningSecret returns a URL-safe secret carrying n random bytes.
// Requests below MinSecretBytes are raised to it.
func GenerateSigningSecret(n int) (string, error) {
	if n < MinSecretBytes {
		n = MinSecretBytes
	}
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}
