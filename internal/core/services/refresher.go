package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driving"
	"github.com/helion-labs/calconnect-core/internal/secrets"
)

// Ensure tokenService implements TokenService
var _ driving.TokenService = (*tokenService)(nil)

// refreshLockTTL bounds how long a refresh lock can outlive its holder.
const refreshLockTTL = 30 * time.Second

// TokenServiceConfig holds dependencies for the token refresher.
type TokenServiceConfig struct {
	Integrations driven.IntegrationStore
	Credentials  driven.CredentialStore
	Audit        *AuditRecorder
	Provider     driven.CalendarProvider
	Cipher       *secrets.Cipher

	// Lock optionally serializes refreshes per tenant across instances.
	// Redundant refreshes are harmless, so losing or lacking the lock
	// falls back to the unlocked path.
	Lock driven.DistributedLock

	// DefaultClient is the process-wide OAuth application fallback.
	DefaultClient OAuthClient

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type tokenService struct {
	integrations  driven.IntegrationStore
	credentials   driven.CredentialStore
	audit         *AuditRecorder
	provider      driven.CalendarProvider
	cipher        *secrets.Cipher
	lock          driven.DistributedLock
	defaultClient OAuthClient
	now           func() time.Time
}

// NewTokenService creates the token refresher.
func NewTokenService(cfg TokenServiceConfig) driving.TokenService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &tokenService{
		integrations:  cfg.Integrations,
		credentials:   cfg.Credentials,
		audit:         cfg.Audit,
		provider:      cfg.Provider,
		cipher:        cfg.Cipher,
		lock:          cfg.Lock,
		defaultClient: cfg.DefaultClient,
		now:           now,
	}
}

// ValidAccessToken returns a usable access token for the tenant, refreshing
// through the provider when the stored token is expired or inside the skew
// window.
func (s *tokenService) ValidAccessToken(ctx context.Context, tenantID string) (string, error) {
	integration, err := s.integrations.Get(ctx, tenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return "", fmt.Errorf("get integration: %w", err)
	}
	if integration == nil {
		return "", domain.ErrNotConnected
	}

	cred, err := s.credentials.GetLatest(ctx, integration.ID)
	if err != nil {
		return "", fmt.Errorf("get credential: %w", err)
	}
	if cred == nil {
		return "", domain.ErrNotConnected
	}

	if !cred.NeedsRefresh(s.now()) {
		access, err := s.cipher.Decrypt(cred.AccessTokenEncrypted, s.accessMigration(ctx, cred.ID))
		if err != nil {
			return "", fmt.Errorf("credential %s: %w", cred.ID, err)
		}
		return access, nil
	}

	if s.lock != nil {
		acquired, lerr := s.lock.Acquire(ctx, refreshLockName(tenantID), refreshLockTTL)
		if lerr != nil {
			slog.Warn("refresh lock unavailable", "tenant_id", tenantID, "error", lerr)
		} else if acquired {
			defer func() {
				if rerr := s.lock.Release(ctx, refreshLockName(tenantID)); rerr != nil {
					slog.Warn("refresh lock release failed", "tenant_id", tenantID, "error", rerr)
				}
			}()
			// Another instance may have refreshed while we waited.
			if fresh, ferr := s.credentials.GetLatest(ctx, integration.ID); ferr == nil && fresh != nil && !fresh.NeedsRefresh(s.now()) {
				return s.cipher.Decrypt(fresh.AccessTokenEncrypted, s.accessMigration(ctx, fresh.ID))
			}
		}
		// Not acquired: proceed anyway. Both refreshes derive from the same
		// still-valid refresh token and produce equivalent results.
	}

	return s.refresh(ctx, integration, cred)
}

// refresh performs the refresh-token grant and rotates the stored access
// token. A provider failure mutates nothing: a transient outage must not
// destroy a recoverable credential.
func (s *tokenService) refresh(ctx context.Context, integration *domain.Integration, cred *domain.Credential) (string, error) {
	if cred.RefreshTokenEncrypted == "" {
		return "", domain.ErrNoRefreshToken
	}

	refreshToken, err := s.cipher.Decrypt(cred.RefreshTokenEncrypted, s.refreshMigration(ctx, cred.ID))
	if err != nil {
		return "", fmt.Errorf("credential %s: %w", cred.ID, err)
	}

	client, err := s.resolveClient(integration)
	if err != nil {
		return "", err
	}

	token, err := s.provider.RefreshToken(ctx, client.ID, client.Secret, refreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token grant: %w", err)
	}

	accessEnc, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(token.ExpiresIn) * time.Second)
	if err := s.credentials.UpdateAccessToken(ctx, cred.ID, accessEnc, expiresAt, now); err != nil {
		return "", fmt.Errorf("rotate access token: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      integration.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorSystem,
		Action:        domain.AuditTokenRefreshed,
		Result:        domain.AuditResultSuccess,
	})

	return token.AccessToken, nil
}

func (s *tokenService) resolveClient(integration *domain.Integration) (OAuthClient, error) {
	if integration.OAuthClientID != "" && integration.OAuthClientSecret != "" {
		return OAuthClient{ID: integration.OAuthClientID, Secret: integration.OAuthClientSecret}, nil
	}
	if s.defaultClient.IsConfigured() {
		return s.defaultClient, nil
	}
	return OAuthClient{}, domain.ErrMissingCredentials
}

// accessMigration persists a re-encrypted legacy access token in place.
func (s *tokenService) accessMigration(ctx context.Context, credID string) secrets.MigrationPolicy {
	return secrets.MigrationFunc(func(_, encrypted string) error {
		if err := s.credentials.MigrateAccessToken(ctx, credID, encrypted); err != nil {
			slog.Warn("access token migration failed", "credential_id", credID, "error", err)
			return err
		}
		return nil
	})
}

// refreshMigration persists a re-encrypted legacy refresh token in place.
func (s *tokenService) refreshMigration(ctx context.Context, credID string) secrets.MigrationPolicy {
	return secrets.MigrationFunc(func(_, encrypted string) error {
		if err := s.credentials.MigrateRefreshToken(ctx, credID, encrypted); err != nil {
			slog.Warn("refresh token migration failed", "credential_id", credID, "error", err)
			return err
		}
		return nil
	})
}

func refreshLockName(tenantID string) string {
	return "calendar-refresh:" + tenantID
}
