package driving

import (
	"context"

	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

// OAuthFlowService orchestrates the tenant-scoped OAuth2 authorization-code
// grant against the calendar provider: connect, callback, disconnect, and
// connectivity test. It is stateless per request; all continuity between
// connect and callback travels in the signed state parameter.
type OAuthFlowService interface {
	// Connect starts an authorization flow for the tenant.
	// Fails with domain.ErrMissingCredentials when no OAuth client is
	// configured for the tenant and no process-wide default exists.
	Connect(ctx context.Context, req ConnectRequest) (*ConnectResponse, error)

	// Callback completes the flow: verifies state, exchanges the code,
	// stores encrypted tokens, and flips the integration to connected.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)

	// Disconnect revokes the access token (best effort), deletes stored
	// credentials, and resets the integration. Idempotent.
	Disconnect(ctx context.Context, req DisconnectRequest) error

	// TestConnection exercises a lightweight provider read and records the
	// outcome on the integration.
	TestConnection(ctx context.Context, req TestRequest) (*TestResponse, error)

	// SelectCalendar records the tenant's default calendar.
	SelectCalendar(ctx context.Context, req SelectCalendarRequest) error
}

// RequestMeta carries caller attribution for the audit trail.
type RequestMeta struct {
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ConnectRequest starts an OAuth flow.
// @Description Request to start the calendar OAuth flow
type ConnectRequest struct {
	TenantID string `json:"-"`
	UserID   string `json:"-"`

	// FrontendOrigin is carried through the state token so the callback can
	// redirect back to the page that initiated the flow.
	FrontendOrigin string `json:"frontend_origin,omitempty" example:"https://app.example.com"`

	Meta RequestMeta `json:"-"`
}

// ConnectResponse contains the provider authorization URL.
// @Description Response containing the provider authorization URL
type ConnectResponse struct {
	AuthURL string `json:"auth_url" example:"https://accounts.google.com/o/oauth2/v2/auth?client_id=..."`
}

// CallbackRequest completes an OAuth flow. Both transports use it: the
// provider's direct redirect and the frontend callback proxy. They differ
// only in how RedirectURI is supplied and in the response shape.
type CallbackRequest struct {
	Code  string `json:"code" example:"4/0Adeu5abc123"`
	State string `json:"state" example:"eyJ0ZW5hbnQi...aWQifQ.9f86d08"`

	// RedirectURI must be the exact URI that produced the code. Empty means
	// the server-side callback URL.
	RedirectURI string `json:"redirect_uri,omitempty"`

	// Error is set when the provider returned an error instead of a code.
	Error string `json:"error,omitempty" example:"access_denied"`

	Meta RequestMeta `json:"-"`
}

// CallbackResponse reports the completed connection.
// @Description Response after a completed OAuth callback
type CallbackResponse struct {
	TenantID              string `json:"tenant_id"`
	ConnectedAccountEmail string `json:"connected_account_email,omitempty"`

	// FrontendOrigin echoes the origin carried in the state token so the
	// HTTP layer can build the closing redirect.
	FrontendOrigin string `json:"-"`
}

// DisconnectRequest tears down a tenant's connection.
type DisconnectRequest struct {
	TenantID string      `json:"-"`
	UserID   string      `json:"-"`
	Meta     RequestMeta `json:"-"`
}

// TestRequest runs a connectivity test for a tenant.
type TestRequest struct {
	TenantID string      `json:"-"`
	UserID   string      `json:"-"`
	Meta     RequestMeta `json:"-"`
}

// TestResponse reports a connectivity test outcome.
// @Description Connectivity test result
type TestResponse struct {
	Success   bool              `json:"success"`
	Calendars []driven.Calendar `json:"calendars,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// SelectCalendarRequest sets the tenant's default calendar.
// @Description Request to select the default calendar
type SelectCalendarRequest struct {
	TenantID     string `json:"-"`
	UserID       string `json:"-"`
	CalendarID   string `json:"calendar_id" example:"primary"`
	CalendarName string `json:"calendar_name" example:"Sales Team"`
}

// OAuthError is an OAuth-specific failure surfaced to callers. The code is
// generic by design; provider detail goes to the integration's diagnostic
// fields, not the user.
type OAuthError struct {
	Code        string `json:"error" example:"invalid_state"`
	Description string `json:"error_description,omitempty" example:"The state parameter is invalid or expired"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Common OAuth errors
var (
	ErrOAuthInvalidState   = &OAuthError{Code: "invalid_state", Description: "The state parameter is invalid or expired"}
	ErrOAuthExchangeFailed = &OAuthError{Code: "exchange_failed", Description: "The provider rejected the token exchange"}
	ErrOAuthDenied         = &OAuthError{Code: "access_denied", Description: "The user denied access"}
)
