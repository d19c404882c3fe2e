package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
	"github.com/helion-labs/calconnect-core/internal/secrets"
)

// Verify interface compliance
var _ driven.IntegrationStore = (*IntegrationStore)(nil)

// IntegrationStore implements driven.IntegrationStore using PostgreSQL.
// The tenant's OAuth client secret is encrypted before it touches the
// database; rows written before encryption was introduced are migrated
// in place on first read.
type IntegrationStore struct {
	db     *DB
	cipher *secrets.Cipher
}

// NewIntegrationStore creates a new PostgreSQL-backed integration store.
func NewIntegrationStore(db *DB, cipher *secrets.Cipher) *IntegrationStore {
	return &IntegrationStore{db: db, cipher: cipher}
}

const integrationColumns = `
	id, tenant_id, provider, status,
	oauth_client_id, oauth_client_secret,
	connected_account_email, default_calendar_id, default_calendar_name, scopes,
	last_test_at, last_test_status, last_error_code, last_error_message,
	created_at, updated_at
`

// Get retrieves the integration for a tenant and provider.
func (s *IntegrationStore) Get(ctx context.Context, tenantID string, provider domain.ProviderType) (*domain.Integration, error) {
	query := `SELECT ` + integrationColumns + `
		FROM integrations
		WHERE tenant_id = $1 AND provider = $2
	`

	var i domain.Integration
	var secretCiphertext string
	var scopes []string
	var lastTestAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, tenantID, provider).Scan(
		&i.ID,
		&i.TenantID,
		&i.Provider,
		&i.Status,
		&i.OAuthClientID,
		&secretCiphertext,
		&i.ConnectedAccountEmail,
		&i.DefaultCalendarID,
		&i.DefaultCalendarName,
		pq.Array(&scopes),
		&lastTestAt,
		&i.LastTestStatus,
		&i.LastErrorCode,
		&i.LastErrorMessage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Not found returns nil, not error
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}

	i.Scopes = scopes
	i.LastTestAt = TimePtr(lastTestAt)

	if secretCiphertext != "" {
		plain, err := s.cipher.Decrypt(secretCiphertext, secrets.MigrationFunc(func(_, encrypted string) error {
			return s.migrateClientSecret(ctx, i.ID, encrypted)
		}))
		if err != nil {
			return nil, fmt.Errorf("decrypt client secret: %w", err)
		}
		i.OAuthClientSecret = plain
	}

	return &i, nil
}

// Upsert creates the integration or updates it in place, keyed by
// (tenant_id, provider).
func (s *IntegrationStore) Upsert(ctx context.Context, integration *domain.Integration) error {
	secretCiphertext := ""
	if integration.OAuthClientSecret != "" {
		var err error
		secretCiphertext, err = s.cipher.Encrypt(integration.OAuthClientSecret)
		if err != nil {
			return fmt.Errorf("encrypt client secret: %w", err)
		}
	}

	now := time.Now()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now

	query := `
		INSERT INTO integrations (
			id, tenant_id, provider, status,
			oauth_client_id, oauth_client_secret,
			connected_account_email, default_calendar_id, default_calendar_name, scopes,
			last_test_at, last_test_status, last_error_code, last_error_message,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (tenant_id, provider) DO UPDATE SET
			status = EXCLUDED.status,
			oauth_client_id = EXCLUDED.oauth_client_id,
			oauth_client_secret = EXCLUDED.oauth_client_secret,
			connected_account_email = EXCLUDED.connected_account_email,
			default_calendar_id = EXCLUDED.default_calendar_id,
			default_calendar_name = EXCLUDED.default_calendar_name,
			scopes = EXCLUDED.scopes,
			last_test_at = EXCLUDED.last_test_at,
			last_test_status = EXCLUDED.last_test_status,
			last_error_code = EXCLUDED.last_error_code,
			last_error_message = EXCLUDED.last_error_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		integration.ID,
		integration.TenantID,
		integration.Provider,
		integration.Status,
		integration.OAuthClientID,
		secretCiphertext,
		integration.ConnectedAccountEmail,
		integration.DefaultCalendarID,
		integration.DefaultCalendarName,
		pq.Array(integration.Scopes),
		NullTime(integration.LastTestAt),
		integration.LastTestStatus,
		integration.LastErrorCode,
		integration.LastErrorMessage,
		integration.CreatedAt,
		integration.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert integration: %w", err)
	}

	return nil
}

// SetStatus updates the connection status and the diagnostic error fields.
func (s *IntegrationStore) SetStatus(ctx context.Context, id string, status domain.IntegrationStatus, errorCode, errorMessage string) error {
	query := `
		UPDATE integrations
		SET status = $2, last_error_code = $3, last_error_message = $4, updated_at = now()
		WHERE id = $1
	`
	return s.exec(ctx, "set integration status", query, id, status, errorCode, errorMessage)
}

// SetConnected marks the integration connected and clears prior error fields.
func (s *IntegrationStore) SetConnected(ctx context.Context, id string, accountEmail string, scopes []string) error {
	query := `
		UPDATE integrations
		SET status = $2, connected_account_email = $3, scopes = $4,
		    last_error_code = '', last_error_message = '', updated_at = now()
		WHERE id = $1
	`
	return s.exec(ctx, "set integration connected", query, id, domain.StatusConnected, accountEmail, pq.Array(scopes))
}

// SetDefaultCalendar records the tenant's chosen default calendar.
func (s *IntegrationStore) SetDefaultCalendar(ctx context.Context, id, calendarID, calendarName string) error {
	query := `
		UPDATE integrations
		SET default_calendar_id = $2, default_calendar_name = $3, updated_at = now()
		WHERE id = $1
	`
	return s.exec(ctx, "set default calendar", query, id, calendarID, calendarName)
}

// SetTestResult records the outcome of a connectivity test.
func (s *IntegrationStore) SetTestResult(ctx context.Context, id string, status domain.TestStatus) error {
	query := `
		UPDATE integrations
		SET last_test_at = now(), last_test_status = $2, updated_at = now()
		WHERE id = $1
	`
	return s.exec(ctx, "set test result", query, id, status)
}

// Reset returns the integration to disconnected, keeping client credentials.
func (s *IntegrationStore) Reset(ctx context.Context, id string) error {
	query := `
		UPDATE integrations
		SET status = $2, connected_account_email = '',
		    default_calendar_id = '', default_calendar_name = '', scopes = NULL,
		    last_test_at = NULL, last_test_status = '',
		    last_error_code = '', last_error_message = '', updated_at = now()
		WHERE id = $1
	`
	return s.exec(ctx, "reset integration", query, id, domain.StatusDisconnected)
}

func (s *IntegrationStore) exec(ctx context.Context, op, query string, args ...any) error {
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

func (s *IntegrationStore) migrateClientSecret(ctx context.Context, id, ciphertext string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE integrations SET oauth_client_secret = $2 WHERE id = $1", id, ciphertext)
	if err != nil {
		return fmt.Errorf("migrate client secret: %w", err)
	}
	return nil
}
