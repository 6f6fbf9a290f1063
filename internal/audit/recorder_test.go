package audit

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
)

func newTestRecorder(t *testing.T, store *fakeStore, opts ...Option) *Recorder {
	t.Helper()
	r, err := NewRecorder(store, store, opts...)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return r
}

func TestWriteStampsMetadata(t *testing.T) {
	store := &fakeStore{}
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, store, WithClock(func() time.Time { return fixed }))

	ctx := WithRequestMeta(context.Background(), RequestMeta{ID: "req-1", IP: "10.0.0.7", UserAgent: "curl/8"})
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{UserID: "u-1", Username: "alice", Role: auth.RoleAdmin})

	e, err := r.Write(ctx, Input{
		Action: "ASSET_ASSIGN",
		Module: "Assets",
		After:  map[string]any{"id": "a1", "password": "nope"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if e.ID == "" || !e.CreatedAt.Equal(fixed) {
		t.Fatalf("missing id or timestamp: %+v", e)
	}
	if e.Status != StatusSuccess || e.Module != "assets" {
		t.Fatalf("unexpected status/module: %+v", e)
	}
	if e.ActorUserID != "u-1" || e.ActorUsername != "alice" {
		t.Fatalf("actor not taken from principal: %+v", e)
	}
	if e.RequestID != "req-1" || e.IP != "10.0.0.7" || e.UserAgent != "curl/8" {
		t.Fatalf("request meta not stamped: %+v", e)
	}
	if string(e.After) != `{"id":"a1"}` {
		t.Fatalf("after not sanitized: %s", e.After)
	}
	if e.Before != nil {
		t.Fatalf("expected absent before, got %s", e.Before)
	}
	if got := store.snapshot(); len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("entry not persisted: %+v", got)
	}
}

func TestWriteValidates(t *testing.T) {
	r := newTestRecorder(t, &fakeStore{})
	cases := []Input{
		{Module: "assets"},
		{Action: "X"},
		{Action: "X", Module: "assets", Status: "MAYBE"},
	}
	for _, in := range cases {
		if _, err := r.Write(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}
}

func TestRecordSwallowsStorageFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	r := newTestRecorder(t, store)

	if _, err := r.Write(context.Background(), Input{Action: "X", Module: "assets"}); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage from Write, got %v", err)
	}
	r.Record(context.Background(), Input{Action: "X", Module: "assets"})
	r.Events(KindAsset).Record(context.Background(), EventInput{EntityID: "a1", Type: EventAssign})
	if len(store.snapshot()) != 0 {
		t.Fatal("nothing should be persisted")
	}
}

func TestListIsReverseChronologicalAndFiltered(t *testing.T) {
	store := &fakeStore{}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r := newTestRecorder(t, store, WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	ctx := context.Background()
	for i, mod := range []string{"assets", "licenses", "assets", "assets"} {
		status := StatusSuccess
		if i == 2 {
			status = StatusFail
		}
		if _, err := r.Write(ctx, Input{Action: "OP", Module: mod, Status: status, ActorUserID: "u1"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	page, err := r.List(ctx, Filter{Module: "assets"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 || page.Limit != DefaultPageSize {
		t.Fatalf("unexpected page %+v", page)
	}
	for i := 1; i < len(page.Entries); i++ {
		if page.Entries[i].CreatedAt.After(page.Entries[i-1].CreatedAt) {
			t.Fatalf("entries not newest first")
		}
	}

	page, err = r.List(ctx, Filter{Module: "assets", Status: "fail"})
	if err != nil || page.Total != 1 {
		t.Fatalf("status filter: %+v, %v", page, err)
	}

	page, err = r.List(ctx, Filter{Limit: 1000, Offset: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Limit != MaxPageSize || len(page.Entries) != 3 || page.Total != 4 {
		t.Fatalf("unexpected clamped page %+v", page)
	}

	if _, err := r.List(ctx, Filter{From: base.Add(time.Hour), To: base}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for inverted range, got %v", err)
	}
}

func TestEventWriterEnforcesClosedTypeSet(t *testing.T) {
	store := &fakeStore{}
	r := newTestRecorder(t, store)
	ctx := context.Background()

	assets := r.Events(KindAsset)
	ev, err := assets.Write(ctx, EventInput{
		EntityID: "a1",
		Type:     "assign",
		After:    map[string]any{"employee": "EMP000001", "owner": map[string]any{"passwordHash": "x"}},
		Note:     " handed over ",
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ev.Type != EventAssign || ev.Kind != KindAsset || ev.Note != "handed over" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if strings.Contains(string(ev.After), "passwordHash") {
		t.Fatalf("event not sanitized: %s", ev.After)
	}

	if _, err := assets.Write(ctx, EventInput{EntityID: "a1", Type: EventPrint}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("PRINT is not an asset event, got %v", err)
	}
	if _, err := r.Events(KindFingerprint).Write(ctx, EventInput{EntityID: "f1", Type: EventPrint}); err != nil {
		t.Fatalf("PRINT is a fingerprint event: %v", err)
	}
	if _, err := assets.Write(ctx, EventInput{Type: EventAssign}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing entity, got %v", err)
	}

	timeline, err := assets.List(ctx, "a1", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(timeline) != 1 || timeline[0].ID != ev.ID {
		t.Fatalf("unexpected timeline %+v", timeline)
	}
}

func TestKindHelpers(t *testing.T) {
	if k, ok := ParseKind(" Asset "); !ok || k != KindAsset || k.Module() != "assets" {
		t.Fatalf("ParseKind asset: %v %v", k, ok)
	}
	if _, ok := ParseKind("repair"); ok {
		t.Fatal("repair has no timeline")
	}
}

func TestStoreInterfacesAreAppendOnly(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeOf((*Store)(nil)).Elem(),
		reflect.TypeOf((*EventStore)(nil)).Elem(),
	} {
		for i := 0; i < typ.NumMethod(); i++ {
			name := typ.Method(i).Name
			if strings.HasPrefix(name, "Update") || strings.HasPrefix(name, "Delete") || strings.HasPrefix(name, "Remove") {
				t.Fatalf("%s exposes mutating method %s", typ, name)
			}
		}
	}
}
