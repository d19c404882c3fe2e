package driven

import (
	"context"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
)

// AuditLog is the append-only store of security events.
// Events are inserted once and never read-modify-written.
type AuditLog interface {
	// Record inserts a single audit event.
	Record(ctx context.Context, event *domain.AuditEvent) error

	// ListRecent returns the most recent events for a tenant, newest first.
	ListRecent(ctx context.Context, tenantID string, limit int) ([]*domain.AuditEvent, error)
}
