package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements driven.CredentialStore using PostgreSQL.
// Token columns hold ciphertext only; encryption happens in the service
// layer before rows reach this store.
type CredentialStore struct {
	db *DB
}

// NewCredentialStore creates a new PostgreSQL-backed credential store.
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// GetLatest returns the most recent credential for the integration.
func (s *CredentialStore) GetLatest(ctx context.Context, integrationID string) (*domain.Credential, error) {
	query := `
		SELECT id, tenant_id, integration_id,
		       access_token_encrypted, refresh_token_encrypted,
		       expires_at, token_type, rotated_at, created_at
		FROM credentials
		WHERE integration_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var c domain.Credential
	var rotatedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, integrationID).Scan(
		&c.ID,
		&c.TenantID,
		&c.IntegrationID,
		&c.AccessTokenEncrypted,
		&c.RefreshTokenEncrypted,
		&c.ExpiresAt,
		&c.TokenType,
		&rotatedAt,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Not found returns nil, not error
	}
	if err != nil {
		return nil, fmt.Errorf("get latest credential: %w", err)
	}

	c.RotatedAt = TimePtr(rotatedAt)
	return &c, nil
}

// Replace deletes any prior credentials for the integration and inserts the
// given one, in a single transaction.
func (s *CredentialStore) Replace(ctx context.Context, cred *domain.Credential) error {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM credentials WHERE integration_id = $1", cred.IntegrationID); err != nil {
			return fmt.Errorf("delete prior credentials: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (
				id, tenant_id, integration_id,
				access_token_encrypted, refresh_token_encrypted,
				expires_at, token_type, rotated_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			cred.ID,
			cred.TenantID,
			cred.IntegrationID,
			cred.AccessTokenEncrypted,
			cred.RefreshTokenEncrypted,
			cred.ExpiresAt,
			cred.TokenType,
			NullTime(cred.RotatedAt),
			cred.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}
		return nil
	})
}

// UpdateAccessToken rotates the access token after a refresh. The refresh
// token column is deliberately not touched.
func (s *CredentialStore) UpdateAccessToken(ctx context.Context, id, accessTokenEncrypted string, expiresAt, rotatedAt time.Time) error {
	query := `
		UPDATE credentials
		SET access_token_encrypted = $2, expires_at = $3, rotated_at = $4
		WHERE id = $1
	`
	return s.exec(ctx, "update access token", query, id, accessTokenEncrypted, expiresAt, rotatedAt)
}

// MigrateAccessToken re-encrypts the access token in place.
func (s *CredentialStore) MigrateAccessToken(ctx context.Context, id, accessTokenEncrypted string) error {
	query := "UPDATE credentials SET access_token_encrypted = $2 WHERE id = $1"
	return s.exec(ctx, "migrate access token", query, id, accessTokenEncrypted)
}

// MigrateRefreshToken re-encrypts the refresh token in place.
func (s *CredentialStore) MigrateRefreshToken(ctx context.Context, id, refreshTokenEncrypted string) error {
	query := "UPDATE credentials SET refresh_token_encrypted = $2 WHERE id = $1"
	return s.exec(ctx, "migrate refresh token", query, id, refreshTokenEncrypted)
}

// DeleteForIntegration removes all credentials for the integration.
func (s *CredentialStore) DeleteForIntegration(ctx context.Context, integrationID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE integration_id = $1", integrationID)
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
