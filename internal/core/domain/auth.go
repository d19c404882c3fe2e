package domain

// Role is a tenant user's authorization level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// TenantClaims are the authenticated facts carried by a tenant user's
// bearer token.
type TenantClaims struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// IsAdmin reports whether the claims carry the admin role.
func (c *TenantClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
