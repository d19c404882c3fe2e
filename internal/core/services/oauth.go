package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driving"
	"github.com/helion-labs/calconnect-core/internal/secrets"
	"github.com/helion-labs/calconnect-core/internal/statetoken"
)

// Ensure oauthFlowService implements OAuthFlowService
var _ driving.OAuthFlowService = (*oauthFlowService)(nil)

// OAuthClient is a process-wide default OAuth application, used only for
// tenants that have configured nothing of their own.
type OAuthClient struct {
	ID     string
	Secret string
}

// IsConfigured reports whether both fields are set.
func (c OAuthClient) IsConfigured() bool {
	return c.ID != "" && c.Secret != ""
}

// OAuthFlowConfig holds dependencies for the OAuth flow service.
type OAuthFlowConfig struct {
	// Integrations persists per-tenant integration rows.
	Integrations driven.IntegrationStore

	// Credentials persists encrypted token records.
	Credentials driven.CredentialStore

	// Audit records security events.
	Audit *AuditRecorder

	// Provider is the calendar provider client.
	Provider driven.CalendarProvider

	// States signs and verifies the OAuth state parameter.
	States *statetoken.Codec

	// Cipher encrypts tokens at rest.
	Cipher *secrets.Cipher

	// Tokens hands out valid access tokens for connectivity tests.
	Tokens driving.TokenService

	// BaseURL is the application base URL for OAuth callbacks.
	// Example: "https://app.example.com"
	BaseURL string

	// DefaultClient is the optional process-wide OAuth application fallback.
	DefaultClient OAuthClient

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type oauthFlowService struct {
	integrations  driven.IntegrationStore
	credentials   driven.CredentialStore
	audit         *AuditRecorder
	provider      driven.CalendarProvider
	states        *statetoken.Codec
	cipher        *secrets.Cipher
	tokens        driving.TokenService
	baseURL       string
	defaultClient OAuthClient
	now           func() time.Time
}

// NewOAuthFlowService creates the OAuth flow orchestrator.
func NewOAuthFlowService(cfg OAuthFlowConfig) driving.OAuthFlowService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &oauthFlowService{
		integrations:  cfg.Integrations,
		credentials:   cfg.Credentials,
		audit:         cfg.Audit,
		provider:      cfg.Provider,
		states:        cfg.States,
		cipher:        cfg.Cipher,
		tokens:        cfg.Tokens,
		baseURL:       cfg.BaseURL,
		defaultClient: cfg.DefaultClient,
		now:           now,
	}
}

// CallbackPath is the server-side redirect target registered with the
// provider. The action parameter is part of the registered URI, so the
// provider appends code and state with '&'.
const CallbackPath = "/api/v1/integrations/calendar?action=callback"

func (s *oauthFlowService) callbackURL() string {
	return s.baseURL + CallbackPath
}

// Connect starts an authorization flow for the tenant.
func (s *oauthFlowService) Connect(ctx context.Context, req driving.ConnectRequest) (*driving.ConnectResponse, error) {
	integration, err := s.ensureIntegration(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("ensure integration: %w", err)
	}

	client, err := s.resolveClient(integration)
	if err != nil {
		return nil, err
	}

	state, err := s.states.Sign(statetoken.Payload{
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Origin:   req.FrontendOrigin,
	})
	if err != nil {
		return nil, fmt.Errorf("sign state: %w", err)
	}

	authURL := s.provider.BuildAuthURL(client.ID, s.callbackURL(), state)

	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      req.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorUser,
		ActorID:       req.UserID,
		Action:        domain.AuditConnectStarted,
		Result:        domain.AuditResultSuccess,
		IP:            req.Meta.IP,
		UserAgent:     req.Meta.UserAgent,
	})

	return &driving.ConnectResponse{AuthURL: authURL}, nil
}

// Callback completes the flow. Both the provider redirect and the frontend
// callback proxy land here; they differ only in how the redirect URI was
// supplied.
func (s *oauthFlowService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	// Verify before any effect. A forged or replayed state must leave no
	// trace beyond this rejection, and the caller learns only "invalid".
	payload, err := s.states.Verify(req.State)
	if err != nil {
		return nil, driving.ErrOAuthInvalidState
	}

	integration, err := s.integrations.Get(ctx, payload.TenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	if integration == nil {
		return nil, driving.ErrOAuthInvalidState
	}

	if req.Error != "" {
		s.recordCallbackFailure(ctx, integration, payload.UserID, req.Meta, req.Error)
		return nil, driving.ErrOAuthDenied
	}

	client, err := s.resolveClient(integration)
	if err != nil {
		return nil, err
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		redirectURI = s.callbackURL()
	}

	token, err := s.provider.ExchangeCode(ctx, client.ID, client.Secret, req.Code, redirectURI)
	if err != nil {
		// Diagnostic status is allowed to fail independently of the flow.
		if serr := s.integrations.SetStatus(ctx, integration.ID, domain.StatusError,
			"exchange_failed", domain.TruncateError(err.Error())); serr != nil {
			slog.Error("set error status failed", "tenant_id", integration.TenantID, "error", serr)
		}
		s.recordCallbackFailure(ctx, integration, payload.UserID, req.Meta, err.Error())
		return nil, driving.ErrOAuthExchangeFailed
	}

	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      integration.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorUser,
		ActorID:       payload.UserID,
		Action:        domain.AuditCallbackReceived,
		Result:        domain.AuditResultSuccess,
		IP:            req.Meta.IP,
		UserAgent:     req.Meta.UserAgent,
	})

	// Account identity is display metadata; its failure must not undo a
	// successful exchange.
	email := ""
	if info, uerr := s.provider.UserInfo(ctx, token.AccessToken); uerr == nil {
		email = info.Email
	} else {
		slog.Warn("userinfo fetch failed", "tenant_id", integration.TenantID, "error", uerr)
	}

	accessEnc, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	refreshEnc := ""
	if token.RefreshToken != "" {
		refreshEnc, err = s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	now := s.now()
	cred := &domain.Credential{
		ID:                    newID("cred"),
		TenantID:              integration.TenantID,
		IntegrationID:         integration.ID,
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		ExpiresAt:             now.Add(time.Duration(token.ExpiresIn) * time.Second),
		TokenType:             token.TokenType,
		CreatedAt:             now,
	}
	if err := s.credentials.Replace(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	scopes := splitScopes(token.Scope)
	if err := s.integrations.SetConnected(ctx, integration.ID, email, scopes); err != nil {
		return nil, fmt.Errorf("mark connected: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      integration.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorUser,
		ActorID:       payload.UserID,
		Action:        domain.AuditConnectCompleted,
		Result:        domain.AuditResultSuccess,
		IP:            req.Meta.IP,
		UserAgent:     req.Meta.UserAgent,
		Metadata:      map[string]string{"account_email": email},
	})

	return &driving.CallbackResponse{
		TenantID:              integration.TenantID,
		ConnectedAccountEmail: email,
		FrontendOrigin:        payload.Origin,
	}, nil
}

// Disconnect tears down the tenant's connection. Revocation at the provider
// is advisory: a stuck local credential with a revoked remote grant is
// strictly worse than an orphaned remote grant.
func (s *oauthFlowService) Disconnect(ctx context.Context, req driving.DisconnectRequest) error {
	integration, err := s.integrations.Get(ctx, req.TenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return fmt.Errorf("get integration: %w", err)
	}
	if integration == nil {
		return nil
	}

	if cred, cerr := s.credentials.GetLatest(ctx, integration.ID); cerr == nil && cred != nil {
		if access, derr := s.cipher.Decrypt(cred.AccessTokenEncrypted, secrets.NoMigration); derr == nil {
			if rerr := s.provider.RevokeToken(ctx, access); rerr != nil {
				slog.Warn("token revocation failed", "tenant_id", req.TenantID, "error", rerr)
			}
		}
	}

	if err := s.credentials.DeleteForIntegration(ctx, integration.ID); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	if err := s.integrations.Reset(ctx, integration.ID); err != nil {
		return fmt.Errorf("reset integration: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      req.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorUser,
		ActorID:       req.UserID,
		Action:        domain.AuditDisconnect,
		Result:        domain.AuditResultSuccess,
		IP:            req.Meta.IP,
		UserAgent:     req.Meta.UserAgent,
	})

	return nil
}

// TestConnection exercises a lightweight provider read and records the
// outcome on the integration.
func (s *oauthFlowService) TestConnection(ctx context.Context, req driving.TestRequest) (*driving.TestResponse, error) {
	integration, err := s.integrations.Get(ctx, req.TenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	if integration == nil {
		return nil, domain.ErrNotConnected
	}

	token, err := s.tokens.ValidAccessToken(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNoRefreshToken) {
			if serr := s.integrations.SetStatus(ctx, integration.ID, domain.StatusExpired, "token_expired", ""); serr != nil {
				slog.Error("set expired status failed", "tenant_id", req.TenantID, "error", serr)
			}
		}
		s.recordTest(ctx, integration, req, false, map[string]string{"error": err.Error()})
		return &driving.TestResponse{Success: false, Error: "no valid access token"}, nil
	}

	calendars, err := s.provider.ListCalendars(ctx, token)
	if err != nil {
		meta := map[string]string{"error": err.Error()}
		var apiErr *driven.APIError
		if errors.As(err, &apiErr) {
			meta["http_status"] = strconv.Itoa(apiErr.StatusCode)
			status := domain.StatusError
			code := strconv.Itoa(apiErr.StatusCode)
			if apiErr.StatusCode == 401 {
				status = domain.StatusExpired
				code = "unauthorized"
			}
			if serr := s.integrations.SetStatus(ctx, integration.ID, status, code,
				domain.TruncateError(apiErr.Message)); serr != nil {
				slog.Error("set status failed", "tenant_id", req.TenantID, "error", serr)
			}
		}
		s.recordTest(ctx, integration, req, false, meta)
		return &driving.TestResponse{Success: false, Error: "connectivity test failed"}, nil
	}

	if serr := s.integrations.SetStatus(ctx, integration.ID, domain.StatusConnected, "", ""); serr != nil {
		slog.Error("set connected status failed", "tenant_id", req.TenantID, "error", serr)
	}
	s.recordTest(ctx, integration, req, true, map[string]string{"http_status": "200"})

	return &driving.TestResponse{Success: true, Calendars: calendars}, nil
}

// SelectCalendar records the tenant's default calendar.
func (s *oauthFlowService) SelectCalendar(ctx context.Context, req driving.SelectCalendarRequest) error {
	if req.CalendarID == "" {
		return domain.ErrInvalidInput
	}

	integration, err := s.integrations.Get(ctx, req.TenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return fmt.Errorf("get integration: %w", err)
	}
	if integration == nil {
		return domain.ErrNotConnected
	}

	return s.integrations.SetDefaultCalendar(ctx, integration.ID, req.CalendarID, req.CalendarName)
}

// ensureIntegration lazily creates the tenant's integration row.
func (s *oauthFlowService) ensureIntegration(ctx context.Context, tenantID string) (*domain.Integration, error) {
	integration, err := s.integrations.Get(ctx, tenantID, domain.ProviderGoogleCalendar)
	if err != nil {
		return nil, err
	}
	if integration != nil {
		return integration, nil
	}

	now := s.now()
	integration = &domain.Integration{
		ID:        newID("int"),
		TenantID:  tenantID,
		Provider:  domain.ProviderGoogleCalendar,
		Status:    domain.StatusDisconnected,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

// resolveClient returns the tenant's OAuth client, falling back to the
// process-wide default only when the tenant has configured nothing at all.
func (s *oauthFlowService) resolveClient(integration *domain.Integration) (OAuthClient, error) {
	if integration.OAuthClientID != "" {
		if integration.OAuthClientSecret == "" {
			return OAuthClient{}, domain.ErrMissingCredentials
		}
		return OAuthClient{ID: integration.OAuthClientID, Secret: integration.OAuthClientSecret}, nil
	}
	if s.defaultClient.IsConfigured() {
		return s.defaultClient, nil
	}
	return OAuthClient{}, domain.ErrMissingCredentials
}

func (s *oauthFlowService) recordCallbackFailure(ctx context.Context, integration *domain.Integration, userID string, meta driving.RequestMeta, reason string) {
	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      integration.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorUser,
		ActorID:       userID,
		Action:        domain.AuditCallbackReceived,
		Result:        domain.AuditResultFail,
		IP:            meta.IP,
		UserAgent:     meta.UserAgent,
		Metadata:      map[string]string{"error": domain.TruncateError(reason)},
	})
}

func (s *oauthFlowService) recordTest(ctx context.Context, integration *domain.Integration, req driving.TestRequest, success bool, meta map[string]string) {
	status := domain.TestStatusFail
	action := domain.AuditTestFail
	result := domain.AuditResultFail
	if success {
		status = domain.TestStatusSuccess
		action = domain.AuditTestSuccess
		result = domain.AuditResultSuccess
	}

	if err := s.integrations.SetTestResult(ctx, integration.ID, status); err != nil {
		slog.Error("record test result failed", "tenant_id", integration.TenantID, "error", err)
	}

	s.audit.Record(ctx, &domain.AuditEvent{
		TenantID:      integration.TenantID,
		IntegrationID: integration.ID,
		ActorType:     domain.ActorUser,
		ActorID:       req.UserID,
		Action:        action,
		Result:        result,
		IP:            req.Meta.IP,
		UserAgent:     req.Meta.UserAgent,
		Metadata:      meta,
	})
}

// splitScopes splits the provider's scope string. Google uses spaces; some
// providers return commas.
func splitScopes(scope string) []string {
	return strings.FieldsFunc(scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
}
