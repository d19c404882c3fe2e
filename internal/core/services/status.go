package services

import (
	"context"
	"fmt"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driving"
)

// Ensure statusService implements StatusService
var _ driving.StatusService = (*statusService)(nil)

// DefaultAuditLimit is how many audit events the read views return.
const DefaultAuditLimit = 50

// maxAuditLimit caps caller-supplied audit page sizes.
const maxAuditLimit = 200

type statusService struct {
	integrations driven.IntegrationStore
	audit        driven.AuditLog
	config       driving.ConfigService
}

// NewStatusService creates the read-side status aggregation.
func NewStatusService(integrations driven.IntegrationStore, audit driven.AuditLog, config driving.ConfigService) driving.StatusService {
	return &statusService{
		integrations: integrations,
		audit:        audit,
		config:       config,
	}
}

// Status returns the integration snapshot, secret redacted. A tenant that
// never touched the integration gets a synthetic disconnected snapshot, as
// rows are created lazily.
func (s *statusService) Status(ctx context.Context, tenantID string) (*domain.IntegrationSnapshot, error) {
	integration, err := s.integrations.Get(ctx, tenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	if integration == nil {
		return &domain.IntegrationSnapshot{
			TenantID: tenantID,
			Provider: domain.ProviderGoogleCalendar,
			Status:   domain.StatusDisconnected,
		}, nil
	}
	return integration.ToSnapshot(), nil
}

// AuditLog returns the most recent audit events for the tenant.
func (s *statusService) AuditLog(ctx context.Context, tenantID string, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	events, err := s.audit.ListRecent(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// Init combines status, config, and audit log into one response.
func (s *statusService) Init(ctx context.Context, tenantID string) (*driving.InitResponse, error) {
	status, err := s.Status(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	config, err := s.config.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	events, err := s.AuditLog(ctx, tenantID, DefaultAuditLimit)
	if err != nil {
		return nil, err
	}

	return &driving.InitResponse{
		Status: status,
		Config: config,
		Audit:  events,
	}, nil
}
