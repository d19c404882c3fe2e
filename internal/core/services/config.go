package services

import (
	"context"
	"fmt"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driving"
)

// Ensure configService implements ConfigService
var _ driving.ConfigService = (*configService)(nil)

type configService struct {
	integrations driven.IntegrationStore
	audit        *AuditRecorder
	now          func() time.Time
}

// NewConfigService creates the tenant OAuth client configuration service.
func NewConfigService(integrations driven.IntegrationStore, audit *AuditRecorder) driving.ConfigService {
	return &configService{
		integrations: integrations,
		audit:        audit,
		now:          time.Now,
	}
}

// SaveConfig stores the tenant's OAuth client registration, creating the
// integration row lazily. The secret is write-only: submitting the masked
// placeholder keeps the stored value.
func (s *configService) SaveConfig(ctx context.Context, req driving.SaveConfigRequest) error {
	if req.ClientID == "" {
		return domain.ErrInvalidInput
	}

	integration, err := s.integrations.Get(ctx, req.TenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return fmt.Errorf("get integration: %w", err)
	}

	now := s.now()
	if integration == nil {
		integration = &domain.Integration{
			ID:        newID("int"),
			TenantID:  req.TenantID,
			Provider:  domain.ProviderGoogleCalendar,
			Status:    domain.StatusDisconnected,
			CreatedAt: now,
		}
	}

	integration.OAuthClientID = req.ClientID
	if req.ClientSecret != "" && req.ClientSecret != driving.SecretPlaceholder {
		integration.OAuthClientSecret = req.ClientSecret
	}
	integration.UpdatedAt = now

	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return fmt.Errorf("save integration: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      req.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorUser,
		ActorID:       req.UserID,
		Action:        domain.AuditConfigSaved,
		Result:        domain.AuditResultSuccess,
		IP:            req.Meta.IP,
		UserAgent:     req.Meta.UserAgent,
	})

	return nil
}

// GetConfig returns the tenant's client id with the secret masked.
func (s *configService) GetConfig(ctx context.Context, tenantID string) (*driving.ClientConfig, error) {
	integration, err := s.integrations.Get(ctx, tenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	if integration == nil {
		return &driving.ClientConfig{}, nil
	}

	cfg := &driving.ClientConfig{
		ClientID:   integration.OAuthClientID,
		Configured: integration.OAuthClientID != "" && integration.OAuthClientSecret != "",
	}
	if integration.OAuthClientSecret != "" {
		cfg.ClientSecret = driving.SecretPlaceholder
	}
	return cfg, nil
}
