package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "token.issue", "token.verify")
	Action string `json:"action"`

	// GrantType that was requested, if any
	GrantType string `json:"grant_type,omitempty"`

	// ClientID of the requesting client
	ClientID string `json:"client_id,omitempty"`

	// UserID and ServiceID identify the resolved principal
	UserID    string `json:"user_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`

	// TokenFingerprint of the issued access token
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	// Granted indicates whether the operation succeeded
	Granted bool `json:"granted"`

	// Error holds the short failure reason
	Error string `json:"error,omitempty"`

	// Stacktrace holds failure detail for operators
	Stacktrace string `json:"stacktrace,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
	Close() error
}
