package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
)

// MemIntegrationStore is an in-memory IntegrationStore for testing.
type MemIntegrationStore struct {
	mu           sync.Mutex
	integrations map[string]*domain.Integration // id -> integration

	// GetErr, if set, is returned by Get.
	GetErr error
}

func NewMemIntegrationStore() *MemIntegrationStore {
	return &MemIntegrationStore{integrations: make(map[string]*domain.Integration)}
}

func (m *MemIntegrationStore) Get(ctx context.Context, tenantID string, provider domain.ProviderType) (*domain.Integration, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.integrations {
		if i.TenantID == tenantID && i.Provider == provider {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemIntegrationStore) Upsert(ctx context.Context, integration *domain.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.integrations {
		if existing.TenantID == integration.TenantID && existing.Provider == integration.Provider {
			cp := *integration
			cp.ID = existing.ID
			m.integrations[id] = &cp
			return nil
		}
	}
	cp := *integration
	m.integrations[integration.ID] = &cp
	return nil
}

func (m *MemIntegrationStore) SetStatus(ctx context.Context, id string, status domain.IntegrationStatus, errorCode, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	i.Status = status
	i.LastErrorCode = errorCode
	i.LastErrorMessage = errorMessage
	return nil
}

func (m *MemIntegrationStore) SetConnected(ctx context.Context, id string, accountEmail string, scopes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	i.Status = domain.StatusConnected
	i.ConnectedAccountEmail = accountEmail
	i.Scopes = scopes
	i.LastErrorCode = ""
	i.LastErrorMessage = ""
	return nil
}

func (m *MemIntegrationStore) SetDefaultCalendar(ctx context.Context, id, calendarID, calendarName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	i.DefaultCalendarID = calendarID
	i.DefaultCalendarName = calendarName
	return nil
}

func (m *MemIntegrationStore) SetTestResult(ctx context.Context, id string, status domain.TestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	i.LastTestAt = &now
	i.LastTestStatus = status
	return nil
}

func (m *MemIntegrationStore) Reset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	i.Status = domain.StatusDisconnected
	i.ConnectedAccountEmail = ""
	i.DefaultCalendarID = ""
	i.DefaultCalendarName = ""
	i.Scopes = nil
	i.LastErrorCode = ""
	i.LastErrorMessage = ""
	return nil
}

// MemCredentialStore is an in-memory CredentialStore for testing.
type MemCredentialStore struct {
	mu          sync.Mutex
	credentials map[string]*domain.Credential // id -> credential

	// ReplaceErr, if set, is returned by Replace.
	ReplaceErr error
}

func NewMemCredentialStore() *MemCredentialStore {
	return &MemCredentialStore{credentials: make(map[string]*domain.Credential)}
}

// CountForIntegration reports how many rows exist for an integration.
func (m *MemCredentialStore) CountForIntegration(integrationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.credentials {
		if c.IntegrationID == integrationID {
			n++
		}
	}
	return n
}

func (m *MemCredentialStore) GetLatest(ctx context.Context, integrationID string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Credential
	for _, c := range m.credentials {
		if c.IntegrationID != integrationID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *MemCredentialStore) Replace(ctx context.Context, cred *domain.Credential) error {
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.credentials {
		if c.IntegrationID == cred.IntegrationID {
			delete(m.credentials, id)
		}
	}
	cp := *cred
	m.credentials[cred.ID] = &cp
	return nil
}

func (m *MemCredentialStore) UpdateAccessToken(ctx context.Context, id, accessTokenEncrypted string, expiresAt, rotatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.AccessTokenEncrypted = accessTokenEncrypted
	c.ExpiresAt = expiresAt
	c.RotatedAt = &rotatedAt
	return nil
}

func (m *MemCredentialStore) MigrateAccessToken(ctx context.Context, id, accessTokenEncrypted string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.AccessTokenEncrypted = accessTokenEncrypted
	return nil
}

func (m *MemCredentialStore) MigrateRefreshToken(ctx context.Context, id, refreshTokenEncrypted string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.RefreshTokenEncrypted = refreshTokenEncrypted
	return nil
}

func (m *MemCredentialStore) DeleteForIntegration(ctx context.Context, integrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.credentials {
		if c.IntegrationID == integrationID {
			delete(m.credentials, id)
		}
	}
	return nil
}

// MemAuditLog is an in-memory AuditLog for testing.
type MemAuditLog struct {
	mu     sync.Mutex
	Events []*domain.AuditEvent

	// RecordErr, if set, is returned by Record.
	RecordErr error
}

func NewMemAuditLog() *MemAuditLog {
	return &MemAuditLog{}
}

func (m *MemAuditLog) Record(ctx context.Context, event *domain.AuditEvent) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.Events = append(m.Events, &cp)
	return nil
}

func (m *MemAuditLog) ListRecent(ctx context.Context, tenantID string, limit int) ([]*domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditEvent
	for _, e := range m.Events {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ByAction returns recorded events matching the action.
func (m *MemAuditLog) ByAction(action domain.AuditAction) []*domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditEvent
	for _, e := range m.Events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// Ensure interface compliance.
var (
	_ driven.IntegrationStore = (*MemIntegrationStore)(nil)
	_ driven.CredentialStore  = (*MemCredentialStore)(nil)
	_ driven.AuditLog         = (*MemAuditLog)(nil)
)
