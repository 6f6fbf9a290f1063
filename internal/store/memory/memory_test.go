package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
	"github.com/vidunsterling-afk/itroom-sub000/internal/sequence"
)

var (
	_ auth.PermissionStore   = (*Store)(nil)
	_ auth.UserStore         = (*Store)(nil)
	_ audit.Store            = (*Store)(nil)
	_ audit.EventStore       = (*Store)(nil)
	_ sequence.CounterStore  = (*Store)(nil)
	_ auth.StaffActionSource = (*auth.PermissionCache)(nil)
)

func TestModuleCopiesAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.CreateModule(ctx, auth.Module{Key: "assets", Name: "Assets", IsActive: true, Actions: auth.ActionSet{"read", "create"}}); err != nil {
		t.Fatalf("CreateModule: %v", err)
	}
	m, _ := s.GetModule(ctx, "assets")
	m.Actions[0] = "delete"
	again, _ := s.GetModule(ctx, "assets")
	if again.Actions[0] != "read" {
		t.Fatalf("stored module mutated through copy: %v", again.Actions)
	}
	if _, err := s.CreateModule(ctx, auth.Module{Key: "assets"}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.GetModule(ctx, "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListModulesHidesInactive(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.CreateModule(ctx, auth.Module{Key: "assets", IsActive: true})
	_, _ = s.CreateModule(ctx, auth.Module{Key: "repairs", IsActive: false})
	active, _ := s.ListModules(ctx, false)
	all, _ := s.ListModules(ctx, true)
	if len(active) != 1 || len(all) != 2 {
		t.Fatalf("active=%d all=%d", len(active), len(all))
	}
}

func TestUpsertPermissionRequiresModule(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.UpsertPermission(ctx, auth.Permission{Role: auth.RoleStaff, ModuleKey: "assets"}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, _ = s.CreateModule(ctx, auth.Module{Key: "assets", IsActive: true, Actions: auth.ActionSet{"read"}})
	if _, err := s.UpsertPermission(ctx, auth.Permission{Role: auth.RoleStaff, ModuleKey: "assets", Actions: auth.ActionSet{"read"}}); err != nil {
		t.Fatalf("UpsertPermission: %v", err)
	}
	perms, _ := s.ListPermissions(ctx, auth.RoleStaff)
	if len(perms) != 1 || perms[0].ModuleKey != "assets" {
		t.Fatalf("unexpected permissions %+v", perms)
	}
}

func TestAuditEntriesPaginateNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = s.AppendAuditEntry(ctx, audit.Entry{ID: string(rune('a' + i)), Module: "assets", CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	got, total, err := s.ListAuditEntries(ctx, audit.Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if total != 5 || len(got) != 2 || got[0].ID != "d" || got[1].ID != "c" {
		t.Fatalf("unexpected page total=%d %+v", total, got)
	}
}

func TestCounterIsAtomic(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementCounter(ctx, "employees")
		}()
	}
	wg.Wait()
	if v, _ := s.CurrentCounter(ctx, "employees"); v != 100 {
		t.Fatalf("expected 100, got %d", v)
	}
	if v, _ := s.CurrentCounter(ctx, "unused"); v != 0 {
		t.Fatalf("expected 0 for absent counter, got %d", v)
	}
}

func TestAuditSnapshotsAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	after := json.RawMessage(`{"tag":"ok"}`)
	if err := s.AppendAuditEntry(ctx, audit.Entry{ID: "e1", Module: "assets", After: after}); err != nil {
		t.Fatalf("AppendAuditEntry: %v", err)
	}
	after[2] = 'X'

	entries, _, err := s.ListAuditEntries(ctx, audit.Filter{Limit: 10})
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListAuditEntries: %v, %v", entries, err)
	}
	if string(entries[0].After) != `{"tag":"ok"}` {
		t.Fatalf("stored entry shares the caller's buffer: %s", entries[0].After)
	}
	entries[0].After[2] = 'Z'
	again, _, _ := s.ListAuditEntries(ctx, audit.Filter{Limit: 10})
	if string(again[0].After) != `{"tag":"ok"}` {
		t.Fatalf("stored entry mutated through a listed copy: %s", again[0].After)
	}
	if again[0].Before != nil {
		t.Fatalf("absent snapshot should stay absent, got %s", again[0].Before)
	}
}

func TestEventSnapshotsAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	ev := audit.Event{ID: "v1", Kind: audit.KindAsset, EntityID: "a-1", Type: audit.EventUpdate,
		Before: json.RawMessage(`{"tag":"old"}`), After: json.RawMessage(`{"tag":"new"}`)}
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	got, err := s.ListEvents(ctx, audit.KindAsset, "a-1", 10, 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListEvents: %v, %v", got, err)
	}
	got[0].Before[2] = 'Z'
	got[0].After[2] = 'Z'
	again, _ := s.ListEvents(ctx, audit.KindAsset, "a-1", 10, 0)
	if string(again[0].Before) != `{"tag":"old"}` || string(again[0].After) != `{"tag":"new"}` {
		t.Fatalf("stored event mutated through a listed copy: %s %s", again[0].Before, again[0].After)
	}
}
