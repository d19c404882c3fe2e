package secrets

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// stateKeyInfo labels the HKDF expansion for the state-signing key so it can
// never collide with the at-rest encryption key derived from the same secret.
const stateKeyInfo = "calconnect/state-token/v1"

// DeriveStateKey derives the 32-byte HMAC key for state token signing from
// the master secret using HKDF-SHA256. The at-rest cipher key uses a plain
// SHA-256 of the same secret for compatibility with existing blobs; new key
// material goes through HKDF with a distinct info string.
func DeriveStateKey(masterSecret string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(stateKeyInfo))

	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive state key: %w", err)
	}
	return key, nil
}
