package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

func newTestProvider(handler http.Handler) (*Provider, *httptest.Server) {
	server := httptest.NewServer(handler)
	p := NewProvider(WithEndpoints(
		server.URL+"/auth",
		server.URL+"/token",
		server.URL+"/revoke",
		server.URL+"/userinfo",
		server.URL+"/calendar/v3",
	))
	return p, server
}

func TestBuildAuthURL(t *testing.T) {
	p := NewProvider()

	raw := p.BuildAuthURL("client-1", "https://crm.example.com/callback", "state-token")

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid auth URL: %v", err)
	}

	q := parsed.Query()
	if q.Get("client_id") != "client-1" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "https://crm.example.com/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if q.Get("state") != "state-token" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("access_type") != "offline" {
		t.Errorf("access_type = %q, want offline", q.Get("access_type"))
	}
	if q.Get("prompt") != "consent select_account" {
		t.Errorf("prompt = %q", q.Get("prompt"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	p, server := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token": "ya29.access",
			"refresh_token": "1//refresh",
			"token_type": "Bearer",
			"scope": "https://www.googleapis.com/auth/calendar.readonly",
			"expires_in": 3599
		}`))
	}))
	defer server.Close()

	token, err := p.ExchangeCode(context.Background(), "client-1", "secret-1", "code-abc", "https://crm.example.com/callback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if token.AccessToken != "ya29.access" {
		t.Errorf("access token = %q", token.AccessToken)
	}
	if token.RefreshToken != "1//refresh" {
		t.Errorf("refresh token = %q", token.RefreshToken)
	}
	if token.ExpiresIn != 3599 {
		t.Errorf("expires_in = %d", token.ExpiresIn)
	}
	if gotForm.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q", gotForm.Get("grant_type"))
	}
	if gotForm.Get("code") != "code-abc" {
		t.Errorf("code = %q", gotForm.Get("code"))
	}
}

func TestExchangeCode_GrantError(t *testing.T) {
	p, server := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant", "error_description": "Bad authorization code."}`))
	}))
	defer server.Close()

	_, err := p.ExchangeCode(context.Background(), "client-1", "secret-1", "bad-code", "https://crm.example.com/callback")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *driven.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *driven.APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Code != "invalid_grant" {
		t.Errorf("code = %q", apiErr.Code)
	}
}

func TestRefreshToken(t *testing.T) {
	p, server := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "1//refresh" {
			t.Errorf("refresh_token = %q", r.PostForm.Get("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "ya29.new", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer server.Close()

	token, err := p.RefreshToken(context.Background(), "client-1", "secret-1", "1//refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken != "ya29.new" {
		t.Errorf("access token = %q", token.AccessToken)
	}
	// Google does not return a refresh token on the refresh grant.
	if token.RefreshToken != "" {
		t.Errorf("refresh token = %q, want empty", token.RefreshToken)
	}
}

func TestRevokeToken(t *testing.T) {
	var revoked string
	p, server := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/revoke" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		revoked = r.PostForm.Get("token")
	}))
	defer server.Close()

	if err := p.RevokeToken(context.Background(), "1//refresh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked != "1//refresh" {
		t.Errorf("revoked token = %q", revoked)
	}
}

func TestUserInfo(t *testing.T) {
	p, server := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.access" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email": "dealer@example.com", "name": "Dealer Admin"}`))
	}))
	defer server.Close()

	info, err := p.UserInfo(context.Background(), "ya29.access")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Email != "dealer@example.com" {
		t.Errorf("email = %q", info.Email)
	}
}

func TestListCalendars(t *testing.T) {
	p, server := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendar/v3/users/me/calendarList" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [
			{"id": "primary-id", "summary": "Dealer Calendar", "primary": true},
			{"id": "team-id", "summary": "Install Team"}
		]}`))
	}))
	defer server.Close()

	calendars, err := p.ListCalendars(context.Background(), "ya29.access")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calendars) != 2 {
		t.Fatalf("got %d calendars, want 2", len(calendars))
	}
	if !calendars[0].Primary || calendars[0].Name != "Dealer Calendar" {
		t.Errorf("unexpected primary calendar: %+v", calendars[0])
	}
}

func TestListCalendars_Unauthorized(t *testing.T) {
	p, server := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"code": 401, "message": "Invalid Credentials", "status": "UNAUTHENTICATED"}}`))
	}))
	defer server.Close()

	_, err := p.ListCalendars(context.Background(), "stale-token")

	var apiErr *driven.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *driven.APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Code != "UNAUTHENTICATED" {
		t.Errorf("code = %q", apiErr.Code)
	}
}
