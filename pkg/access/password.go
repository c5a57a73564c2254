package access

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// passwordEntropyBytes is the number of random bytes behind a temporary password (144 bits)
	passwordEntropyBytes = 18

	// passwordPrefix guarantees one upper, lower, digit and symbol regardless of the random part
	passwordPrefix = "Aa1!"
)

// GenerateTemporaryPassword returns a single-use password for a newly created account.
// Format: Aa1!<base64url(18 random bytes)>
func GenerateTemporaryPassword() (string, error) {
	randomBytes := make([]byte, passwordEntropyBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return passwordPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}
