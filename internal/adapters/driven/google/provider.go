package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.CalendarProvider = (*Provider)(nil)

// Scopes requested on every connect. Read-only calendar access plus event
// management and the account email for display.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/userinfo.email",
}

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultRevokeURL   = "https://oauth2.googleapis.com/revoke"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultAPIBaseURL  = "https://www.googleapis.com/calendar/v3"

	requestTimeout = 10 * time.Second
)

// Provider implements driven.CalendarProvider against the Google Calendar
// and OAuth2 endpoints.
type Provider struct {
	httpClient *http.Client

	authURL     string
	tokenURL    string
	revokeURL   string
	userInfoURL string
	apiBaseURL  string
}

// Option customizes a Provider.
type Option func(*Provider)

// WithEndpoints overrides the Google endpoints. Used in tests to point the
// provider at a local server.
func WithEndpoints(authURL, tokenURL, revokeURL, userInfoURL, apiBaseURL string) Option {
	return func(p *Provider) {
		p.authURL = authURL
		p.tokenURL = tokenURL
		p.revokeURL = revokeURL
		p.userInfoURL = userInfoURL
		p.apiBaseURL = strings.TrimSuffix(apiBaseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// NewProvider creates a Google Calendar provider adapter.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		httpClient:  &http.Client{Timeout: requestTimeout},
		authURL:     defaultAuthURL,
		tokenURL:    defaultTokenURL,
		revokeURL:   defaultRevokeURL,
		userInfoURL: defaultUserInfoURL,
		apiBaseURL:  defaultAPIBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BuildAuthURL constructs the Google OAuth authorization URL.
// access_type=offline and prompt=consent are always set so Google re-issues
// a refresh token even when the account granted access before.
func (p *Provider) BuildAuthURL(clientID, redirectURI, state string) string {
	params := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"scope":         {strings.Join(Scopes, " ")},
		"response_type": {"code"},
		"access_type":   {"offline"},
		"prompt":        {"consent select_account"},
	}
	return p.authURL + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *Provider) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*driven.OAuthToken, error) {
	params := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	}
	return p.tokenRequest(ctx, params)
}

// RefreshToken performs the refresh-token grant.
func (p *Provider) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*driven.OAuthToken, error) {
	params := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	return p.tokenRequest(ctx, params)
}

func (p *Provider) tokenRequest(ctx context.Context, params url.Values) (*driven.OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.tokenURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		ExpiresIn    int    `json:"expires_in"`
		Error        string `json:"error"`
		ErrorDesc    string `json:"error_description"`
	}

	if resp.StatusCode != http.StatusOK {
		// Google returns a JSON error body for grant failures.
		if json.Unmarshal(body, &tokenResp) == nil && tokenResp.Error != "" {
			return nil, &driven.APIError{
				StatusCode: resp.StatusCode,
				Code:       tokenResp.Error,
				Message:    tokenResp.ErrorDesc,
			}
		}
		return nil, &driven.APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &driven.OAuthToken{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Scope:        tokenResp.Scope,
		ExpiresIn:    tokenResp.ExpiresIn,
	}, nil
}

// RevokeToken revokes a token at Google. Works for both access and refresh
// tokens; revoking either invalidates the whole grant.
func (p *Provider) RevokeToken(ctx context.Context, token string) error {
	params := url.Values{"token": {token}}

	req, err := http.NewRequestWithContext(ctx, "POST", p.revokeURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &driven.APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return nil
}

// UserInfo fetches the connected account's identity.
func (p *Provider) UserInfo(ctx context.Context, accessToken string) (*driven.UserInfo, error) {
	var user struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := p.apiGet(ctx, p.userInfoURL, accessToken, &user); err != nil {
		return nil, err
	}
	return &driven.UserInfo{Email: user.Email, Name: user.Name}, nil
}

// ListCalendars lists calendars visible to the account.
func (p *Provider) ListCalendars(ctx context.Context, accessToken string) ([]driven.Calendar, error) {
	var list struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
			Primary bool   `json:"primary"`
		} `json:"items"`
	}
	if err := p.apiGet(ctx, p.apiBaseURL+"/users/me/calendarList", accessToken, &list); err != nil {
		return nil, err
	}

	calendars := make([]driven.Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, driven.Calendar{
			ID:      item.ID,
			Name:    item.Summary,
			Primary: item.Primary,
		})
	}
	return calendars, nil
}

func (p *Provider) apiGet(ctx context.Context, rawURL, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseAPIError extracts Google's structured error envelope when present.
func parseAPIError(statusCode int, body []byte) *driven.APIError {
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return &driven.APIError{
			StatusCode: statusCode,
			Code:       envelope.Error.Status,
			Message:    envelope.Error.Message,
		}
	}
	return &driven.APIError{StatusCode: statusCode, Message: string(body)}
}
