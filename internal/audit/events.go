package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind names an entity type that keeps its own event timeline.
type Kind string

const (
	KindAsset       Kind = "asset"
	KindFingerprint Kind = "fingerprint"
)

// EventType is a lifecycle transition of a timeline entity.
type EventType string

const (
	EventCreate        EventType = "CREATE"
	EventAssign        EventType = "ASSIGN"
	EventUnassign      EventType = "UNASSIGN"
	EventStatusChange  EventType = "STATUS_CHANGE"
	EventUpdateDetails EventType = "UPDATE_DETAILS"
	EventPrint         EventType = "PRINT"
	EventUpdate        EventType = "UPDATE"
)

var kindEvents = map[Kind][]EventType{
	KindAsset:       {EventCreate, EventAssign, EventUnassign, EventStatusChange, EventUpdateDetails},
	KindFingerprint: {EventCreate, EventStatusChange, EventPrint, EventUpdate},
}

var kindModules = map[Kind]string{
	KindAsset:       "assets",
	KindFingerprint: "fingerprint",
}

// ParseKind normalizes s into a known entity kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindEvents[k]; !ok {
		return "", false
	}
	return k, true
}

// Allows reports whether t belongs to the closed event set of k.
func (k Kind) Allows(t EventType) bool {
	return slices.Contains(kindEvents[k], t)
}

// Module returns the permission module guarding the kind's timeline.
func (k Kind) Module() string {
	return kindModules[k]
}

// EventInput describes one transition on an entity timeline.
type EventInput struct {
	EntityID      string
	Type          EventType
	Before        any
	After         any
	Note          string
	ActorUserID   string
	ActorUsername string
}

// Event is an immutable timeline record.
type Event struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	EntityID      string          `json:"entity_id"`
	Type          EventType       `json:"type"`
	Before        json.RawMessage `json:"before,omitempty"`
	After         json.RawMessage `json:"after,omitempty"`
	Note          string          `json:"note,omitempty"`
	ActorUserID   string          `json:"actor_user_id,omitempty"`
	ActorUsername string          `json:"actor_username,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EventStore appends and lists timeline events, newest first.
type EventStore interface {
	AppendEvent(ctx context.Context, e Event) error
	ListEvents(ctx context.Context, kind Kind, entityID string, limit, offset int) ([]Event, error)
}

// EventWriter writes the timeline of a single entity kind.
type EventWriter struct {
	r    *Recorder
	kind Kind
}

func (w *EventWriter) Kind() Kind { return w.kind }

// Write sanitizes and appends the event, returning any validation or storage error.
func (w *EventWriter) Write(ctx context.Context, in EventInput) (Event, error) {
	if w.r.events == nil {
		return Event{}, fmt.Errorf("%w: event store is not configured", ErrStorage)
	}
	ev, err := w.build(ctx, in)
	if err != nil {
		return Event{}, err
	}
	if err := w.r.events.AppendEvent(ctx, ev); err != nil {
		return Event{}, storageErr("append event", err)
	}
	countWrite(streamEvents)
	return ev, nil
}

// Record is the best-effort variant of Write: failures are logged and counted, never returned.
func (w *EventWriter) Record(ctx context.Context, in EventInput) {
	if _, err := w.Write(ctx, in); err != nil {
		w.r.reportFailure(ctx, streamEvents, err,
			"kind", string(w.kind),
			"entity_id", in.EntityID,
			"type", string(in.Type),
		)
	}
}

// List returns the entity's timeline newest first.
func (w *EventWriter) List(ctx context.Context, entityID string, limit, offset int) ([]Event, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	if w.r.events == nil {
		return nil, fmt.Errorf("%w: event store is not configured", ErrStorage)
	}
	limit, offset = clampPage(limit, offset)
	events, err := w.r.events.ListEvents(ctx, w.kind, entityID, limit, offset)
	if err != nil {
		return nil, storageErr("list events", err)
	}
	return events, nil
}

func (w *EventWriter) build(ctx context.Context, in EventInput) (Event, error) {
	entityID := strings.TrimSpace(in.EntityID)
	if entityID == "" {
		return Event{}, fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	typ := EventType(strings.ToUpper(strings.TrimSpace(string(in.Type))))
	if !w.kind.Allows(typ) {
		return Event{}, fmt.Errorf("%w: event type %q is not valid for %s", ErrInvalidInput, in.Type, w.kind)
	}
	before, err := w.r.sanitizer.Sanitize(in.Before)
	if err != nil {
		return Event{}, err
	}
	after, err := w.r.sanitizer.Sanitize(in.After)
	if err != nil {
		return Event{}, err
	}
	actorID, actorName := actorFromContext(ctx, in.ActorUserID, in.ActorUsername)
	return Event{
		ID:            w.r.newID(),
		Kind:          w.kind,
		EntityID:      entityID,
		Type:          typ,
		Before:        before,
		After:         after,
		Note:          strings.TrimSpace(in.Note),
		ActorUserID:   actorID,
		ActorUsername: actorName,
		CreatedAt:     w.r.now().UTC(),
	}, nil
}
