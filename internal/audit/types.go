package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Status is the outcome recorded on an audit entry.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFail    Status = "FAIL"
)

// ParseStatus normalizes s into a known status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusSuccess, StatusFail:
		return st, true
	default:
		return "", false
	}
}

// Input describes a state-changing operation to be appended to the audit log.
type Input struct {
	ActorUserID   string
	ActorUsername string
	Action        string
	Module        string
	Status        Status
	EntityType    string
	EntityID      string
	Summary       string
	Before        any
	After         any
	IP            string
	UserAgent     string
}

// Entry is an immutable audit log record.
type Entry struct {
	ID            string          `json:"id"`
	ActorUserID   string          `json:"actor_user_id,omitempty"`
	ActorUsername string          `json:"actor_username,omitempty"`
	Action        string          `json:"action"`
	Module        string          `json:"module"`
	Status        Status          `json:"status"`
	EntityType    string          `json:"entity_type,omitempty"`
	EntityID      string          `json:"entity_id,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	Before        json.RawMessage `json:"before,omitempty"`
	After         json.RawMessage `json:"after,omitempty"`
	IP            string          `json:"ip,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Filter narrows an audit log query. Zero values match everything.
type Filter struct {
	Module      string
	ActorUserID string
	Status      Status
	EntityType  string
	EntityID    string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// Matches reports whether e satisfies every set criterion. From is inclusive, To exclusive.
func (f Filter) Matches(e Entry) bool {
	switch {
	case f.Module != "" && e.Module != f.Module:
		return false
	case f.ActorUserID != "" && e.ActorUserID != f.ActorUserID:
		return false
	case f.Status != "" && e.Status != f.Status:
		return false
	case f.EntityType != "" && e.EntityType != f.EntityType:
		return false
	case f.EntityID != "" && e.EntityID != f.EntityID:
		return false
	case !f.From.IsZero() && e.CreatedAt.Before(f.From):
		return false
	case !f.To.IsZero() && !e.CreatedAt.Before(f.To):
		return false
	}
	return true
}

// Page is one slice of a reverse-chronological audit query.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Store appends and lists audit entries. There is deliberately no update or delete.
// ListAuditEntries returns entries newest first together with the unpaginated total.
type Store interface {
	AppendAuditEntry(ctx context.Context, e Entry) error
	ListAuditEntries(ctx context.Context, f Filter) ([]Entry, int, error)
}
