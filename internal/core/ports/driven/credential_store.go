package driven

import (
	"context"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
)

// CredentialStore persists encrypted OAuth token records.
// History is not retained: Replace deletes prior rows for the integration
// before inserting the new one, so exactly one active credential exists.
type CredentialStore interface {
	// GetLatest returns the most recent credential for the integration.
	// Returns nil, nil when none exists.
	GetLatest(ctx context.Context, integrationID string) (*domain.Credential, error)

	// Replace deletes any prior credentials for the integration and inserts
	// the given one, atomically.
	Replace(ctx context.Context, cred *domain.Credential) error

	// UpdateAccessToken rotates the access token on an existing credential
	// after a refresh. The refresh token column is left untouched.
	UpdateAccessToken(ctx context.Context, id, accessTokenEncrypted string, expiresAt, rotatedAt time.Time) error

	// MigrateAccessToken re-encrypts the access token in place without
	// touching expiry or rotation fields. Used by legacy-plaintext migration.
	MigrateAccessToken(ctx context.Context, id, accessTokenEncrypted string) error

	// MigrateRefreshToken re-encrypts the refresh token in place.
	MigrateRefreshToken(ctx context.Context, id, refreshTokenEncrypted string) error

	// DeleteForIntegration removes all credentials for the integration.
	DeleteForIntegration(ctx context.Context, integrationID string) error
}
