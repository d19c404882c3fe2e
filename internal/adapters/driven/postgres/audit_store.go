package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AuditLog = (*AuditStore)(nil)

// AuditStore implements driven.AuditLog using PostgreSQL.
// The table is append-only; nothing in the application updates or deletes
// audit rows.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new PostgreSQL-backed audit log.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Record inserts a single audit event.
func (s *AuditStore) Record(ctx context.Context, event *domain.AuditEvent) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, tenant_id, integration_id, actor_type, actor_id,
			action, result, ip, user_agent, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		event.ID,
		event.TenantID,
		event.IntegrationID,
		event.ActorType,
		event.ActorID,
		event.Action,
		event.Result,
		event.IP,
		event.UserAgent,
		metadata,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	return nil
}

// ListRecent returns the most recent events for a tenant, newest first.
func (s *AuditStore) ListRecent(ctx context.Context, tenantID string, limit int) ([]*domain.AuditEvent, error) {
	query := `
		SELECT id, tenant_id, integration_id, actor_type, actor_id,
		       action, result, ip, user_agent, metadata, created_at
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var metadata []byte

		if err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.IntegrationID,
			&event.ActorType,
			&event.ActorID,
			&event.Action,
			&event.Result,
			&event.IP,
			&event.UserAgent,
			&metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
