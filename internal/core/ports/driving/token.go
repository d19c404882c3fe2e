package driving

import "context"

// TokenService hands out valid provider access tokens for a tenant,
// transparently refreshing expired ones.
type TokenService interface {
	// ValidAccessToken returns a usable access token for the tenant.
	// Returns domain.ErrNotConnected when no credential exists,
	// domain.ErrNoRefreshToken when the token is expired and cannot be
	// refreshed, and domain.ErrDecryptFailed when the stored secret is
	// unreadable. A transient provider failure during refresh surfaces as an
	// error without mutating stored state.
	ValidAccessToken(ctx context.Context, tenantID string) (string, error)
}
