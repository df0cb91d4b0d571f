package domain

import (
	"context"
	"time"
)

// ActorType classifies who triggered an audited action.
type ActorType string

const (
	ActorUser   ActorType = "USER"
	ActorClient ActorType = "CLIENT"
	ActorSystem ActorType = "SYSTEM"
)

// AuditStatus is the outcome of an audited security decision.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailure AuditStatus = "FAILURE"
)

// Audit actions emitted by the grant engine.
const (
	AuditActionClientAuth     = "client.authenticate"
	AuditActionAuthorize      = "oauth2.authorize"
	AuditActionTokenIssue     = "oauth2.token"
	AuditActionTokenRefresh   = "oauth2.token.refresh"
	AuditActionTokenRevoke    = "oauth2.revoke"
	AuditActionAccessDenied   = "oauth2.access_denied"
	AuditActionReplayDetected = "oauth2.refresh_replay"
)

// AuditRecord is one immutable entry in the security audit log. A record
// is written synchronously for every security decision, success or
// failure, and is never mutated afterwards.
type AuditRecord struct {
	ID           string            `json:"id"`
	ActorType    ActorType         `json:"actor_type"`
	ActorID      string            `json:"actor_id,omitempty"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Status       AuditStatus       `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AuditEvent is the input to the audit logger, before actor resolution
// and ID assignment.
type AuditEvent struct {
	UserID       string
	ClientID     string
	Action       string
	ResourceType string
	ResourceID   string
	Status       AuditStatus
	Metadata     map[string]string
	IPAddress    string
	UserAgent    string
}

// AuditRepository defines append-only persistence for audit records.
type AuditRepository interface {
	// Create appends one record; records are never updated or deleted
	Create(ctx context.Context, record *AuditRecord) error
}

// AuditLogger writes audit records for security decisions. A logging
// failure must never change the outcome of the request being audited.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent)
}
