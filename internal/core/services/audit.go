package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

// AuditRecorder writes security events to the append-only audit log.
// Recording never fails the caller: an audit-store outage must not block the
// primary security flow, but the failure is logged for operators.
type AuditRecorder struct {
	store driven.AuditLog
	now   func() time.Time
}

// NewAuditRecorder creates an audit recorder over the given store.
func NewAuditRecorder(store driven.AuditLog) *AuditRecorder {
	return &AuditRecorder{store: store, now: time.Now}
}

// Record inserts the event, filling in ID and timestamp.
func (r *AuditRecorder) Record(ctx context.Context, event *domain.AuditEvent) {
	if event.ID == "" {
		event.ID = newID("evt")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now()
	}
	if event.ActorType == "" {
		event.ActorType = domain.ActorSystem
	}

	if err := r.store.Record(ctx, event); err != nil {
		slog.Error("audit record failed",
			"tenant_id", event.TenantID,
			"action", event.Action,
			"error", err)
	}
}

// newID generates a prefixed random identifier.
func newID(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}
