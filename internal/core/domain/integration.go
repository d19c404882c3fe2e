package domain

import "time"

// ProviderType identifies an external calendar provider.
type ProviderType string

const (
	// ProviderGoogleCalendar is the Google Calendar provider.
	ProviderGoogleCalendar ProviderType = "google_calendar"
)

// IntegrationStatus is the connection state of an Integration.
type IntegrationStatus string

const (
	StatusDisconnected IntegrationStatus = "disconnected"
	StatusConnected    IntegrationStatus = "connected"
	StatusExpired      IntegrationStatus = "expired"
	StatusError        IntegrationStatus = "error"
)

// TestStatus records the outcome of the last connectivity test.
type TestStatus string

const (
	TestStatusSuccess TestStatus = "success"
	TestStatusFail    TestStatus = "fail"
)

// Integration is the per-tenant record of a provider connection.
// At most one row exists per (tenant_id, provider).
type Integration struct {
	ID       string            `json:"id"`
	TenantID string            `json:"tenant_id"`
	Provider ProviderType      `json:"provider"`
	Status   IntegrationStatus `json:"status"`

	// Tenant-supplied OAuth application credentials.
	// The secret is stored encrypted and never serialized.
	OAuthClientID     string `json:"-"`
	OAuthClientSecret string `json:"-"`

	ConnectedAccountEmail string   `json:"connected_account_email,omitempty"`
	DefaultCalendarID     string   `json:"default_calendar_id,omitempty"`
	DefaultCalendarName   string   `json:"default_calendar_name,omitempty"`
	Scopes                []string `json:"scopes,omitempty"`

	LastTestAt       *time.Time `json:"last_test_at,omitempty"`
	LastTestStatus   TestStatus `json:"last_test_status,omitempty"`
	LastErrorCode    string     `json:"last_error_code,omitempty"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IntegrationSnapshot is the read-side view of an Integration.
// The client secret never leaves the server; only its presence is exposed.
type IntegrationSnapshot struct {
	ID                    string            `json:"id"`
	TenantID              string            `json:"tenant_id"`
	Provider              ProviderType      `json:"provider"`
	Status                IntegrationStatus `json:"status"`
	ClientConfigured      bool              `json:"client_configured"`
	ConnectedAccountEmail string            `json:"connected_account_email,omitempty"`
	DefaultCalendarID     string            `json:"default_calendar_id,omitempty"`
	DefaultCalendarName   string            `json:"default_calendar_name,omitempty"`
	Scopes                []string          `json:"scopes,omitempty"`
	LastTestAt            *time.Time        `json:"last_test_at,omitempty"`
	LastTestStatus        TestStatus        `json:"last_test_status,omitempty"`
	LastErrorCode         string            `json:"last_error_code,omitempty"`
	LastErrorMessage      string            `json:"last_error_message,omitempty"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// ToSnapshot converts an Integration to its redacted read-side view.
func (i *Integration) ToSnapshot() *IntegrationSnapshot {
	return &IntegrationSnapshot{
		ID:                    i.ID,
		TenantID:              i.TenantID,
		Provider:              i.Provider,
		Status:                i.Status,
		ClientConfigured:      i.OAuthClientID != "" && i.OAuthClientSecret != "",
		ConnectedAccountEmail: i.ConnectedAccountEmail,
		DefaultCalendarID:     i.DefaultCalendarID,
		DefaultCalendarName:   i.DefaultCalendarName,
		Scopes:                i.Scopes,
		LastTestAt:            i.LastTestAt,
		LastTestStatus:        i.LastTestStatus,
		LastErrorCode:         i.LastErrorCode,
		LastErrorMessage:      i.LastErrorMessage,
		UpdatedAt:             i.UpdatedAt,
	}
}

// maxErrorLen bounds provider error text captured on the Integration.
const maxErrorLen = 500

// TruncateError bounds provider-supplied error text before persisting it.
func TruncateError(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
