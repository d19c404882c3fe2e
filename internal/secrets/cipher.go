package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
)

const (
	// encPrefix marks a value as ciphertext. Values without it are legacy
	// plaintext eligible for migration-on-read.
	encPrefix = "enc:"

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12
)

// MigrationPolicy decides what happens when Decrypt encounters a legacy
// plaintext value. Migration failures never fail the read.
type MigrationPolicy interface {
	// Migrate receives the plaintext and its freshly encrypted form.
	// Implementations persist the encrypted form in place.
	Migrate(plaintext, encrypted string) error
}

// NoMigration leaves legacy plaintext values untouched. Use it on read paths
// that must stay free of implicit writes, e.g. bulk audits.
var NoMigration MigrationPolicy = noMigration{}

type noMigration struct{}

func (noMigration) Migrate(string, string) error { return nil }

// MigrationFunc adapts a function to the MigrationPolicy interface.
type MigrationFunc func(plaintext, encrypted string) error

func (f MigrationFunc) Migrate(plaintext, encrypted string) error {
	return f(plaintext, encrypted)
}

// Cipher provides authenticated encryption for secrets at rest.
// One static per-process key is derived by hashing the master secret with
// SHA-256. Encoded output: "enc:" + base64(nonce || ciphertext || tag).
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher derives the AES-256 key from the master secret and returns a
// ready cipher. The master secret is injected, never read from globals.
func NewCipher(masterSecret string) (*Cipher, error) {
	key := sha256.Sum256([]byte(masterSecret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// Encrypt seals the plaintext with a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored value. A value without the "enc:" prefix is legacy
// plaintext: it is returned unchanged and handed to the migration policy for
// best-effort re-encryption in place.
func (c *Cipher) Decrypt(value string, policy MigrationPolicy) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		if policy == nil {
			policy = NoMigration
		}
		encrypted, err := c.Encrypt(value)
		if err == nil {
			// Migration is advisory; the read must still succeed.
			_ = policy.Migrate(value, encrypted)
		}
		return value, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", domain.ErrDecryptFailed
	}
	if len(sealed) < nonceSize+c.gcm.Overhead() {
		return "", domain.ErrDecryptFailed
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", domain.ErrDecryptFailed
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether a stored value carries the ciphertext marker.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encPrefix)
}
