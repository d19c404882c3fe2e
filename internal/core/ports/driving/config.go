package driving

import "context"

// SecretPlaceholder is returned in place of a configured client secret.
// The secret is write-only: it can be replaced but never read back.
const SecretPlaceholder = "••••••••"

// ConfigService manages the tenant's own OAuth client registration.
type ConfigService interface {
	// SaveConfig stores the tenant's OAuth client id and secret. The secret
	// is encrypted before persistence. Passing the placeholder as the secret
	// keeps the stored value.
	SaveConfig(ctx context.Context, req SaveConfigRequest) error

	// GetConfig returns the tenant's client id with the secret masked.
	GetConfig(ctx context.Context, tenantID string) (*ClientConfig, error)
}

// SaveConfigRequest carries the tenant's OAuth client registration.
// @Description Tenant OAuth client credentials (secret is write-only)
type SaveConfigRequest struct {
	TenantID     string      `json:"-"`
	UserID       string      `json:"-"`
	ClientID     string      `json:"client_id" example:"1234.apps.googleusercontent.com"`
	ClientSecret string      `json:"client_secret" example:"GOCSPX-..."`
	Meta         RequestMeta `json:"-"`
}

// ClientConfig is the read view of a tenant's OAuth client registration.
// @Description Tenant OAuth client configuration, secret masked
type ClientConfig struct {
	ClientID string `json:"client_id"`

	// ClientSecret is always the placeholder when configured, empty when not.
	ClientSecret string `json:"client_secret"`

	Configured bool `json:"configured"`
}
