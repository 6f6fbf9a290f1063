package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
	"github.com/vidunsterling-afk/itroom-sub000/internal/ids"
	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
)

const (
	streamAudit  = "audit_log"
	streamEvents = "entity_events"
)

// Recorder writes the system-wide audit log and hands out per-kind event writers.
type Recorder struct {
	store     Store
	events    EventStore
	sanitizer *Sanitizer
	now       func() time.Time
	newID     func() string
}

// Option configures Recorder.
type Option func(*Recorder)

// WithSanitizer replaces the default denylist sanitizer.
func WithSanitizer(s *Sanitizer) Option {
	return func(r *Recorder) {
		if s != nil {
			r.sanitizer = s
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder builds a recorder. events may be nil when no timeline entity is served.
func NewRecorder(store Store, events EventStore, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	r := &Recorder{
		store:     store,
		events:    events,
		sanitizer: NewSanitizer(),
		now:       time.Now,
		newID:     ids.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Events returns the timeline writer for kind.
func (r *Recorder) Events(kind Kind) *EventWriter {
	return &EventWriter{r: r, kind: kind}
}

// Write sanitizes and appends an audit entry, returning any validation or storage error.
func (r *Recorder) Write(ctx context.Context, in Input) (Entry, error) {
	e, err := r.build(ctx, in)
	if err != nil {
		return Entry{}, err
	}
	if err := r.store.AppendAuditEntry(ctx, e); err != nil {
		return Entry{}, storageErr("append audit entry", err)
	}
	countWrite(streamAudit)
	obs.Logger().InfoContext(ctx, "audit",
		"id", e.ID,
		"action", e.Action,
		"module", e.Module,
		"status", string(e.Status),
		"entity_type", e.EntityType,
		"entity_id", e.EntityID,
		"actor_user_id", e.ActorUserID,
		"request_id", e.RequestID,
	)
	return e, nil
}

// Record is the best-effort variant of Write. The mutation it describes is already
// committed, so failures are logged and counted but never returned.
func (r *Recorder) Record(ctx context.Context, in Input) {
	if _, err := r.Write(ctx, in); err != nil {
		r.reportFailure(ctx, streamAudit, err,
			"action", in.Action,
			"module", in.Module,
			"entity_type", in.EntityType,
			"entity_id", in.EntityID,
		)
	}
}

// List returns a reverse-chronological page of entries matching f.
func (r *Recorder) List(ctx context.Context, f Filter) (Page, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return Page{}, fmt.Errorf("%w: date range end precedes start", ErrInvalidInput)
	}
	if f.Status != "" {
		st, ok := ParseStatus(string(f.Status))
		if !ok {
			return Page{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
		}
		f.Status = st
	}
	f.Module = strings.ToLower(strings.TrimSpace(f.Module))
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	entries, total, err := r.store.ListAuditEntries(ctx, f)
	if err != nil {
		return Page{}, storageErr("list audit entries", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Page{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (r *Recorder) build(ctx context.Context, in Input) (Entry, error) {
	action := strings.TrimSpace(in.Action)
	if action == "" {
		return Entry{}, fmt.Errorf("%w: action is required", ErrInvalidInput)
	}
	module := strings.ToLower(strings.TrimSpace(in.Module))
	if module == "" {
		return Entry{}, fmt.Errorf("%w: module is required", ErrInvalidInput)
	}
	status := StatusSuccess
	if in.Status != "" {
		st, ok := ParseStatus(string(in.Status))
		if !ok {
			return Entry{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
		}
		status = st
	}
	before, err := r.sanitizer.Sanitize(in.Before)
	if err != nil {
		return Entry{}, err
	}
	after, err := r.sanitizer.Sanitize(in.After)
	if err != nil {
		return Entry{}, err
	}
	actorID, actorName := actorFromContext(ctx, in.ActorUserID, in.ActorUsername)
	meta, _ := RequestMetaFromContext(ctx)
	return Entry{
		ID:            r.newID(),
		ActorUserID:   actorID,
		ActorUsername: actorName,
		Action:        action,
		Module:        module,
		Status:        status,
		EntityType:    strings.TrimSpace(in.EntityType),
		EntityID:      strings.TrimSpace(in.EntityID),
		Summary:       strings.TrimSpace(in.Summary),
		Before:        before,
		After:         after,
		IP:            firstNonEmpty(in.IP, meta.IP),
		UserAgent:     firstNonEmpty(in.UserAgent, meta.UserAgent),
		RequestID:     meta.ID,
		CreatedAt:     r.now().UTC(),
	}, nil
}

func (r *Recorder) reportFailure(ctx context.Context, stream string, err error, attrs ...any) {
	obs.AuditWriteFailures.WithLabelValues(stream).Inc()
	args := append([]any{"stream", stream, "error", err.Error()}, attrs...)
	if meta, ok := RequestMetaFromContext(ctx); ok && meta.ID != "" {
		args = append(args, "request_id", meta.ID)
	}
	obs.Logger().WarnContext(ctx, "audit_write_failed", args...)
}

func countWrite(stream string) {
	obs.AuditWrites.WithLabelValues(stream).Inc()
}

// actorFromContext falls back to the authenticated principal when the caller did not name an actor.
func actorFromContext(ctx context.Context, userID, username string) (string, string) {
	userID = strings.TrimSpace(userID)
	username = strings.TrimSpace(username)
	if userID != "" || username != "" {
		return userID, username
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		return p.UserID, p.Username
	}
	return "", ""
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
