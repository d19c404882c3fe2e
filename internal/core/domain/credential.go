package domain

import "time"

// Credential holds the encrypted OAuth tokens for an Integration.
// Exactly one active row exists per Integration; each successful token
// exchange replaces prior rows rather than appending history.
type Credential struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	IntegrationID string `json:"integration_id"`

	// Ciphertext blobs in the "enc:" wire format. The refresh token may be
	// empty when the provider did not grant offline access.
	AccessTokenEncrypted  string `json:"-"`
	RefreshTokenEncrypted string `json:"-"`

	ExpiresAt time.Time  `json:"expires_at"`
	TokenType string     `json:"token_type"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// refreshSkew is the safety margin subtracted from the nominal expiry so a
// token judged valid here cannot expire before the caller uses it.
const refreshSkew = 60 * time.Second

// NeedsRefresh reports whether the access token is expired or inside the
// skew window at the given instant.
func (c *Credential) NeedsRefresh(now time.Time) bool {
	return !c.ExpiresAt.After(now.Add(refreshSkew))
}
