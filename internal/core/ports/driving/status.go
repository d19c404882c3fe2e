package driving

import (
	"context"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
)

// StatusService is the read-side aggregation over an integration: current
// state, configuration presence, and recent audit events. It performs no
// writes and holds no state-machine responsibility.
type StatusService interface {
	// Status returns the integration snapshot with the client secret
	// redacted to a configured-or-not flag.
	Status(ctx context.Context, tenantID string) (*domain.IntegrationSnapshot, error)

	// AuditLog returns the most recent audit events for the tenant.
	AuditLog(ctx context.Context, tenantID string, limit int) ([]*domain.AuditEvent, error)

	// Init combines status, config, and audit log so the integration health
	// view renders in a single round trip.
	Init(ctx context.Context, tenantID string) (*InitResponse, error)
}

// InitResponse is the combined integration health view.
// @Description Combined status, config, and audit view
type InitResponse struct {
	Status *domain.IntegrationSnapshot `json:"status"`
	Config *ClientConfig               `json:"config"`
	Audit  []*domain.AuditEvent        `json:"audit"`
}
