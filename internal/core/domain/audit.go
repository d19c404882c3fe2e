package domain

import "time"

// AuditAction enumerates the security-relevant actions recorded by the core.
type AuditAction string

const (
	AuditConnectStarted   AuditAction = "connect_started"
	AuditCallbackReceived AuditAction = "callback_received"
	AuditConnectCompleted AuditAction = "connect_completed"
	AuditTokenRefreshed   AuditAction = "token_refreshed"
	AuditTestSuccess      AuditAction = "test_success"
	AuditTestFail         AuditAction = "test_fail"
	AuditDisconnect       AuditAction = "disconnect"
	AuditConfigSaved      AuditAction = "config_saved"
)

// AuditResult is the outcome of an audited action.
type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFail    AuditResult = "fail"
)

// ActorType distinguishes user-initiated actions from system-initiated ones.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// AuditEvent is an append-only record of a security-relevant action.
// Events are inserted once and never updated or deleted by the core.
type AuditEvent struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenant_id"`
	IntegrationID string            `json:"integration_id,omitempty"`
	ActorType     ActorType         `json:"actor_type"`
	ActorID       string            `json:"actor_id,omitempty"`
	Action        AuditAction       `json:"action"`
	Result        AuditResult       `json:"result"`
	IP            string            `json:"ip,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
