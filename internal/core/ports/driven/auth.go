package driven

import "github.com/helion-labs/calconnect-core/internal/core/domain"

// AuthAdapter verifies bearer tokens presented by tenant users.
// Token issuance lives in the surrounding CRM; this core only validates.
type AuthAdapter interface {
	// GenerateToken creates a signed token from claims. Used by tests and
	// internal tooling.
	GenerateToken(claims *domain.TenantClaims) (string, error)

	// ParseToken validates a token and returns its claims.
	ParseToken(token string) (*domain.TenantClaims, error)
}
