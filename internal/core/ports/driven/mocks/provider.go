package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

// MockCalendarProvider is a function-field mock of CalendarProvider.
// Call counters let tests assert exactly how many provider round trips
// happened.
type MockCalendarProvider struct {
	mu sync.Mutex

	BuildAuthURLFn  func(clientID, redirectURI, state string) string
	ExchangeCodeFn  func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*driven.OAuthToken, error)
	RefreshTokenFn  func(ctx context.Context, clientID, clientSecret, refreshToken string) (*driven.OAuthToken, error)
	RevokeTokenFn   func(ctx context.Context, token string) error
	UserInfoFn      func(ctx context.Context, accessToken string) (*driven.UserInfo, error)
	ListCalendarsFn func(ctx context.Context, accessToken string) ([]driven.Calendar, error)

	ExchangeCalls int
	RefreshCalls  int
	RevokeCalls   int
	ListCalls     int
}

func NewMockCalendarProvider() *MockCalendarProvider {
	return &MockCalendarProvider{}
}

func (m *MockCalendarProvider) BuildAuthURL(clientID, redirectURI, state string) string {
	if m.BuildAuthURLFn != nil {
		return m.BuildAuthURLFn(clientID, redirectURI, state)
	}
	return "https://provider.test/auth?client_id=" + clientID + "&state=" + state
}

func (m *MockCalendarProvider) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*driven.OAuthToken, error) {
	m.mu.Lock()
	m.ExchangeCalls++
	m.mu.Unlock()
	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, clientID, clientSecret, code, redirectURI)
	}
	return &driven.OAuthToken{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "Bearer",
		Scope:        "https://www.googleapis.com/auth/calendar.readonly",
		ExpiresIn:    3600,
	}, nil
}

func (m *MockCalendarProvider) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*driven.OAuthToken, error) {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()
	if m.RefreshTokenFn != nil {
		return m.RefreshTokenFn(ctx, clientID, clientSecret, refreshToken)
	}
	return &driven.OAuthToken{
		AccessToken: "refreshed-access",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}, nil
}

func (m *MockCalendarProvider) RevokeToken(ctx context.Context, token string) error {
	m.mu.Lock()
	m.RevokeCalls++
	m.mu.Unlock()
	if m.RevokeTokenFn != nil {
		return m.RevokeTokenFn(ctx, token)
	}
	return nil
}

func (m *MockCalendarProvider) UserInfo(ctx context.Context, accessToken string) (*driven.UserInfo, error) {
	if m.UserInfoFn != nil {
		return m.UserInfoFn(ctx, accessToken)
	}
	return &driven.UserInfo{Email: "dealer@example.com", Name: "Dealer Admin"}, nil
}

func (m *MockCalendarProvider) ListCalendars(ctx context.Context, accessToken string) ([]driven.Calendar, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	if m.ListCalendarsFn != nil {
		return m.ListCalendarsFn(ctx, accessToken)
	}
	return []driven.Calendar{{ID: "primary", Name: "Primary", Primary: true}}, nil
}

// MockLock is a single-process DistributedLock for testing.
type MockLock struct {
	mu   sync.Mutex
	held map[string]time.Time

	AcquireCalls int
	ReleaseCalls int

	// AcquireErr, if set, is returned by Acquire.
	AcquireErr error
}

func NewMockLock() *MockLock {
	return &MockLock{held: make(map[string]time.Time)}
}

func (m *MockLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AcquireCalls++
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if expiry, ok := m.held[name]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	m.held[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	delete(m.held, name)
	return nil
}

func (m *MockLock) Ping(ctx context.Context) error { return nil }

var (
	_ driven.CalendarProvider = (*MockCalendarProvider)(nil)
	_ driven.DistributedLock  = (*MockLock)(nil)
)
