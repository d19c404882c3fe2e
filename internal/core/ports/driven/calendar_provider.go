package driven

import (
	"context"
	"fmt"
)

// OAuthToken is a token response from the provider.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int
}

// UserInfo identifies the connected provider account.
type UserInfo struct {
	Email string
	Name  string
}

// Calendar is a single calendar visible to the connected account.
type Calendar struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

// APIError is a non-2xx response from the provider. The status code lets
// callers distinguish expired credentials (401) from other failures.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider returned %d: %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// CalendarProvider performs OAuth and lightweight API operations against the
// external calendar provider. All network calls carry a bounded timeout.
type CalendarProvider interface {
	// BuildAuthURL constructs the provider authorization URL. Scopes are
	// fixed per provider; offline access and forced consent are always
	// requested so repeat connects re-issue a refresh token.
	BuildAuthURL(clientID, redirectURI, state string) string

	// ExchangeCode exchanges an authorization code for tokens. The redirect
	// URI must be the exact one that produced the code.
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthToken, error)

	// RefreshToken performs the refresh-token grant.
	RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*OAuthToken, error)

	// RevokeToken revokes a token at the provider. Callers treat failure as
	// advisory.
	RevokeToken(ctx context.Context, token string) error

	// UserInfo fetches the connected account's identity.
	UserInfo(ctx context.Context, accessToken string) (*UserInfo, error)

	// ListCalendars lists calendars visible to the account. Doubles as the
	// connectivity test; a 401 surfaces as *APIError with that status.
	ListCalendars(ctx context.Context, accessToken string) ([]Calendar, error)
}
