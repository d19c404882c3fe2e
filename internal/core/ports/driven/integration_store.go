package driven

import (
	"context"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
)

// IntegrationStore persists per-tenant provider integrations.
// At most one row exists per (tenant_id, provider); Upsert enforces this.
type IntegrationStore interface {
	// Get retrieves the integration for a tenant and provider.
	// Returns nil, nil when none exists.
	Get(ctx context.Context, tenantID string, provider domain.ProviderType) (*domain.Integration, error)

	// Upsert creates the integration or updates it in place, keyed by
	// (tenant_id, provider). The client secret is encrypted before storage.
	Upsert(ctx context.Context, integration *domain.Integration) error

	// SetStatus updates the connection status and the diagnostic error
	// fields. Empty code/message clear any prior error.
	SetStatus(ctx context.Context, id string, status domain.IntegrationStatus, errorCode, errorMessage string) error

	// SetConnected marks the integration connected, recording the account
	// email and granted scopes and clearing prior error fields.
	SetConnected(ctx context.Context, id string, accountEmail string, scopes []string) error

	// SetDefaultCalendar records the tenant's chosen default calendar.
	SetDefaultCalendar(ctx context.Context, id, calendarID, calendarName string) error

	// SetTestResult records the outcome of a connectivity test.
	SetTestResult(ctx context.Context, id string, status domain.TestStatus) error

	// Reset returns the integration to disconnected, clearing account,
	// calendar, scope, and error fields. Client credentials are kept.
	Reset(ctx context.Context, id string) error
}
