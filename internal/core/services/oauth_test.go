package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven/mocks"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driving"
	"github.com/helion-labs/calconnect-core/internal/secrets"
	"github.com/helion-labs/calconnect-core/internal/statetoken"
)

type flowFixture struct {
	integrations *mocks.MemIntegrationStore
	credentials  *mocks.MemCredentialStore
	audit        *mocks.MemAuditLog
	provider     *mocks.MockCalendarProvider
	cipher       *secrets.Cipher
	codec        *statetoken.Codec
	config       driving.ConfigService
	tokens       driving.TokenService
	flow         driving.OAuthFlowService
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	cipher, err := secrets.NewCipher("test-master-secret")
	require.NoError(t, err)

	f := &flowFixture{
		integrations: mocks.NewMemIntegrationStore(),
		credentials:  mocks.NewMemCredentialStore(),
		audit:        mocks.NewMemAuditLog(),
		provider:     mocks.NewMockCalendarProvider(),
		cipher:       cipher,
		codec:        statetoken.NewCodec([]byte("0123456789abcdef0123456789abcdef")),
	}

	recorder := NewAuditRecorder(f.audit)
	f.config = NewConfigService(f.integrations, recorder)
	f.tokens = NewTokenService(TokenServiceConfig{
		Integrations: f.integrations,
		Credentials:  f.credentials,
		Audit:        recorder,
		Provider:     f.provider,
		Cipher:       cipher,
	})
	f.flow = NewOAuthFlowService(OAuthFlowConfig{
		Integrations: f.integrations,
		Credentials:  f.credentials,
		Audit:        recorder,
		Provider:     f.provider,
		States:       f.codec,
		Cipher:       cipher,
		Tokens:       f.tokens,
		BaseURL:      "https://crm.example.com",
	})

	return f
}

// configure registers an OAuth client for the tenant.
func (f *flowFixture) configure(t *testing.T, tenantID string) {
	t.Helper()
	err := f.config.SaveConfig(context.Background(), driving.SaveConfigRequest{
		TenantID:     tenantID,
		UserID:       "user-1",
		ClientID:     "client-id-1",
		ClientSecret: "client-secret-1",
	})
	require.NoError(t, err)
}

// connected runs a full connect/callback cycle and returns the integration.
func (f *flowFixture) connected(t *testing.T, tenantID string) *domain.Integration {
	t.Helper()
	f.configure(t, tenantID)

	_, err := f.flow.Connect(context.Background(), driving.ConnectRequest{
		TenantID: tenantID,
		UserID:   "user-1",
	})
	require.NoError(t, err)

	state, err := f.codec.Sign(statetoken.Payload{TenantID: tenantID, UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.flow.Callback(context.Background(), driving.CallbackRequest{
		Code:  "code-1",
		State: state,
	})
	require.NoError(t, err)

	integration, err := f.integrations.Get(context.Background(), tenantID, domain.ProviderGoogleCalendar)
	require.NoError(t, err)
	require.NotNil(t, integration)
	return integration
}

func TestConnect_MissingCredentials(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.Connect(context.Background(), driving.ConnectRequest{
		TenantID: "tenant-a",
		UserID:   "user-1",
	})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestConnect_ReturnsAuthURLAndAudits(t *testing.T) {
	f := newFlowFixture(t)
	f.configure(t, "tenant-a")

	resp, err := f.flow.Connect(context.Background(), driving.ConnectRequest{
		TenantID:       "tenant-a",
		UserID:         "user-1",
		FrontendOrigin: "https://crm.example.com",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.AuthURL, "client_id=client-id-1")
	assert.Contains(t, resp.AuthURL, "state=")

	events := f.audit.ByAction(domain.AuditConnectStarted)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActorUser, events[0].ActorType)
	assert.Equal(t, "user-1", events[0].ActorID)
}

func TestConnect_DefaultClientFallback(t *testing.T) {
	f := newFlowFixture(t)

	recorder := NewAuditRecorder(f.audit)
	flow := NewOAuthFlowService(OAuthFlowConfig{
		Integrations:  f.integrations,
		Credentials:   f.credentials,
		Audit:         recorder,
		Provider:      f.provider,
		States:        f.codec,
		Cipher:        f.cipher,
		Tokens:        f.tokens,
		BaseURL:       "https://crm.example.com",
		DefaultClient: OAuthClient{ID: "default-id", Secret: "default-secret"},
	})

	resp, err := flow.Connect(context.Background(), driving.ConnectRequest{
		TenantID: "tenant-a",
		UserID:   "user-1",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.AuthURL, "client_id=default-id")
}

func TestCallback_InvalidStateFailsClosed(t *testing.T) {
	f := newFlowFixture(t)
	f.configure(t, "tenant-a")

	// Signed with a different key: syntactically valid, wrongly signed.
	forger := statetoken.NewCodec([]byte("attacker-key-32-bytes-long-xxxxx"))
	forged, err := forger.Sign(statetoken.Payload{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.flow.Callback(context.Background(), driving.CallbackRequest{
		Code:  "code-1",
		State: forged,
	})

	var oauthErr *driving.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "invalid_state", oauthErr.Code)

	// No partial effects: no credential rows, no token exchange.
	integration, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	require.NotNil(t, integration)
	assert.Equal(t, 0, f.credentials.CountForIntegration(integration.ID))
	assert.Equal(t, 0, f.provider.ExchangeCalls)
}

func TestCallback_EndToEndConnect(t *testing.T) {
	f := newFlowFixture(t)
	f.configure(t, "tenant-a")

	_, err := f.flow.Connect(context.Background(), driving.ConnectRequest{
		TenantID: "tenant-a",
		UserID:   "user-1",
	})
	require.NoError(t, err)

	state, err := f.codec.Sign(statetoken.Payload{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)

	resp, err := f.flow.Callback(context.Background(), driving.CallbackRequest{
		Code:  "abc123",
		State: state,
	})
	require.NoError(t, err)
	assert.Equal(t, "dealer@example.com", resp.ConnectedAccountEmail)

	integration, err := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, integration.Status)
	assert.Equal(t, "dealer@example.com", integration.ConnectedAccountEmail)

	cred, err := f.credentials.GetLatest(context.Background(), integration.ID)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.True(t, strings.HasPrefix(cred.AccessTokenEncrypted, "enc:"))
	assert.True(t, strings.HasPrefix(cred.RefreshTokenEncrypted, "enc:"))

	completed := f.audit.ByAction(domain.AuditConnectCompleted)
	assert.Len(t, completed, 1)
}

func TestCallback_ReplacesPriorCredential(t *testing.T) {
	f := newFlowFixture(t)
	integration := f.connected(t, "tenant-a")

	// Second full exchange must leave exactly one credential row.
	state, err := f.codec.Sign(statetoken.Payload{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)
	_, err = f.flow.Callback(context.Background(), driving.CallbackRequest{
		Code:  "code-2",
		State: state,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.credentials.CountForIntegration(integration.ID))
}

func TestCallback_ExchangeFailure(t *testing.T) {
	f := newFlowFixture(t)
	f.configure(t, "tenant-a")

	f.provider.ExchangeCodeFn = func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*driven.OAuthToken, error) {
		return nil, errors.New("invalid_grant: code already redeemed")
	}

	state, err := f.codec.Sign(statetoken.Payload{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.flow.Callback(context.Background(), driving.CallbackRequest{
		Code:  "stale-code",
		State: state,
	})

	var oauthErr *driving.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "exchange_failed", oauthErr.Code)

	integration, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, domain.StatusError, integration.Status)
	assert.Equal(t, "exchange_failed", integration.LastErrorCode)
	assert.Contains(t, integration.LastErrorMessage, "invalid_grant")
	assert.Equal(t, 0, f.credentials.CountForIntegration(integration.ID))

	failures := f.audit.ByAction(domain.AuditCallbackReceived)
	require.Len(t, failures, 1)
	assert.Equal(t, domain.AuditResultFail, failures[0].Result)
}

func TestCallback_UserInfoFailureIsNonFatal(t *testing.T) {
	f := newFlowFixture(t)
	f.configure(t, "tenant-a")

	f.provider.UserInfoFn = func(ctx context.Context, accessToken string) (*driven.UserInfo, error) {
		return nil, errors.New("userinfo unavailable")
	}

	state, err := f.codec.Sign(statetoken.Payload{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)

	resp, err := f.flow.Callback(context.Background(), driving.CallbackRequest{
		Code:  "code-1",
		State: state,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.ConnectedAccountEmail)

	integration, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, domain.StatusConnected, integration.Status)
}

func TestCallback_ProviderDenied(t *testing.T) {
	f := newFlowFixture(t)
	f.configure(t, "tenant-a")

	state, err := f.codec.Sign(statetoken.Payload{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.flow.Callback(context.Background(), driving.CallbackRequest{
		State: state,
		Error: "access_denied",
	})

	var oauthErr *driving.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "access_denied", oauthErr.Code)
	assert.Equal(t, 0, f.provider.ExchangeCalls)
}

func TestDisconnect_Idempotent(t *testing.T) {
	f := newFlowFixture(t)
	integration := f.connected(t, "tenant-a")

	req := driving.DisconnectRequest{TenantID: "tenant-a", UserID: "user-1"}
	require.NoError(t, f.flow.Disconnect(context.Background(), req))
	require.NoError(t, f.flow.Disconnect(context.Background(), req))

	got, err := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, got.Status)
	assert.Empty(t, got.ConnectedAccountEmail)
	assert.Equal(t, 0, f.credentials.CountForIntegration(integration.ID))
}

func TestDisconnect_NeverConnectedTenant(t *testing.T) {
	f := newFlowFixture(t)

	err := f.flow.Disconnect(context.Background(), driving.DisconnectRequest{TenantID: "tenant-z"})
	assert.NoError(t, err)
}

func TestDisconnect_RevocationFailureIsolated(t *testing.T) {
	f := newFlowFixture(t)
	integration := f.connected(t, "tenant-a")

	f.provider.RevokeTokenFn = func(ctx context.Context, token string) error {
		return errors.New("revocation endpoint timeout")
	}

	err := f.flow.Disconnect(context.Background(), driving.DisconnectRequest{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)

	got, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, domain.StatusDisconnected, got.Status)
	assert.Equal(t, 0, f.credentials.CountForIntegration(integration.ID))
}

func TestTestConnection_Success(t *testing.T) {
	f := newFlowFixture(t)
	f.connected(t, "tenant-a")

	resp, err := f.flow.TestConnection(context.Background(), driving.TestRequest{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.Calendars, 1)
	assert.Equal(t, "primary", resp.Calendars[0].ID)

	integration, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, domain.StatusConnected, integration.Status)
	assert.Equal(t, domain.TestStatusSuccess, integration.LastTestStatus)
	assert.NotNil(t, integration.LastTestAt)

	events := f.audit.ByAction(domain.AuditTestSuccess)
	require.Len(t, events, 1)
	assert.Equal(t, "200", events[0].Metadata["http_status"])
}

func TestTestConnection_UnauthorizedMarksExpired(t *testing.T) {
	f := newFlowFixture(t)
	f.connected(t, "tenant-a")

	f.provider.ListCalendarsFn = func(ctx context.Context, accessToken string) ([]driven.Calendar, error) {
		return nil, &driven.APIError{StatusCode: 401, Message: "Invalid Credentials"}
	}

	resp, err := f.flow.TestConnection(context.Background(), driving.TestRequest{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	integration, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, domain.StatusExpired, integration.Status)

	events := f.audit.ByAction(domain.AuditTestFail)
	require.Len(t, events, 1)
	assert.Equal(t, "401", events[0].Metadata["http_status"])
}

func TestTestConnection_ServerErrorMarksError(t *testing.T) {
	f := newFlowFixture(t)
	f.connected(t, "tenant-a")

	f.provider.ListCalendarsFn = func(ctx context.Context, accessToken string) ([]driven.Calendar, error) {
		return nil, &driven.APIError{StatusCode: 503, Message: "Backend Error"}
	}

	resp, err := f.flow.TestConnection(context.Background(), driving.TestRequest{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	integration, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, domain.StatusError, integration.Status)
	assert.Equal(t, "503", integration.LastErrorCode)
}

func TestTestConnection_NotConnected(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.TestConnection(context.Background(), driving.TestRequest{TenantID: "tenant-a"})
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSelectCalendar(t *testing.T) {
	f := newFlowFixture(t)
	f.connected(t, "tenant-a")

	err := f.flow.SelectCalendar(context.Background(), driving.SelectCalendarRequest{
		TenantID:     "tenant-a",
		UserID:       "user-1",
		CalendarID:   "cal-42",
		CalendarName: "Sales Team",
	})
	require.NoError(t, err)

	integration, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, "cal-42", integration.DefaultCalendarID)
	assert.Equal(t, "Sales Team", integration.DefaultCalendarName)
}

func TestSelectCalendar_RequiresCalendarID(t *testing.T) {
	f := newFlowFixture(t)
	f.connected(t, "tenant-a")

	err := f.flow.SelectCalendar(context.Background(), driving.SelectCalendarRequest{
		TenantID: "tenant-a",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuditFailureDoesNotBlockFlow(t *testing.T) {
	f := newFlowFixture(t)
	f.configure(t, "tenant-a")
	f.audit.RecordErr = errors.New("audit store down")

	_, err := f.flow.Connect(context.Background(), driving.ConnectRequest{
		TenantID: "tenant-a",
		UserID:   "user-1",
	})
	assert.NoError(t, err)
}

func TestStatemachine_ExpiredAfterConnectedOnExpiry(t *testing.T) {
	f := newFlowFixture(t)
	integration := f.connected(t, "tenant-a")

	// Make the stored credential expired with no refresh token.
	cred, err := f.credentials.GetLatest(context.Background(), integration.ID)
	require.NoError(t, err)
	accessEnc, err := f.cipher.Encrypt("stale-access")
	require.NoError(t, err)
	require.NoError(t, f.credentials.Replace(context.Background(), &domain.Credential{
		ID:                   "cred_stale",
		TenantID:             cred.TenantID,
		IntegrationID:        cred.IntegrationID,
		AccessTokenEncrypted: accessEnc,
		ExpiresAt:            time.Now().Add(-time.Hour),
		TokenType:            "Bearer",
		CreatedAt:            time.Now(),
	}))

	resp, err := f.flow.TestConnection(context.Background(), driving.TestRequest{TenantID: "tenant-a", UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	got, _ := f.integrations.Get(context.Background(), "tenant-a", domain.ProviderGoogleCalendar)
	assert.Equal(t, domain.StatusExpired, got.Status)
}
