// Package memory keeps every store in process memory. It backs the service when no
// PostgreSQL DSN is configured and is used by handler tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
)

// Store implements the auth, audit and sequence store interfaces.
type Store struct {
	mu          sync.RWMutex
	modules     map[string]auth.Module
	permissions map[permKey]auth.Permission
	users       map[string]auth.User
	entries     []audit.Entry
	events      []audit.Event
	counters    map[string]int64
	now         func() time.Time
}

type permKey struct {
	role   auth.Role
	module string
}

func New() *Store {
	return &Store{
		modules:     make(map[string]auth.Module),
		permissions: make(map[permKey]auth.Permission),
		users:       make(map[string]auth.User),
		counters:    make(map[string]int64),
		now:         time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateModule(_ context.Context, m auth.Module) (auth.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[m.Key]; ok {
		return auth.Module{}, auth.ErrConflict
	}
	now := s.now().UTC()
	m.Actions = slices.Clone(m.Actions)
	m.CreatedAt, m.UpdatedAt = now, now
	s.modules[m.Key] = m
	return cloneModule(m), nil
}

func (s *Store) GetModule(_ context.Context, key string) (auth.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[key]
	if !ok {
		return auth.Module{}, auth.ErrNotFound
	}
	return cloneModule(m), nil
}

func (s *Store) ListModules(_ context.Context, includeInactive bool) ([]auth.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Module, 0, len(s.modules))
	for _, m := range s.modules {
		if m.IsActive || includeInactive {
			out = append(out, cloneModule(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) UpdateModule(_ context.Context, key string, upd auth.ModuleUpdate) (auth.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[key]
	if !ok {
		return auth.Module{}, auth.ErrNotFound
	}
	if upd.Name != nil {
		m.Name = *upd.Name
	}
	if upd.IsActive != nil {
		m.IsActive = *upd.IsActive
	}
	if upd.Actions != nil {
		m.Actions = slices.Clone(auth.ActionSet(upd.Actions))
	}
	m.UpdatedAt = s.now().UTC()
	s.modules[key] = m
	return cloneModule(m), nil
}

func (s *Store) GetPermission(_ context.Context, role auth.Role, moduleKey string) (auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permKey{role, moduleKey}]
	if !ok {
		return auth.Permission{}, auth.ErrNotFound
	}
	p.Actions = slices.Clone(p.Actions)
	return p, nil
}

func (s *Store) UpsertPermission(_ context.Context, p auth.Permission) (auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[p.ModuleKey]; !ok {
		return auth.Permission{}, auth.ErrNotFound
	}
	p.Actions = slices.Clone(p.Actions)
	p.UpdatedAt = s.now().UTC()
	s.permissions[permKey{p.Role, p.ModuleKey}] = p
	out := p
	out.Actions = slices.Clone(p.Actions)
	return out, nil
}

func (s *Store) ListPermissions(_ context.Context, role auth.Role) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Permission, 0)
	for k, p := range s.permissions {
		if k.role != role {
			continue
		}
		p.Actions = slices.Clone(p.Actions)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleKey < out[j].ModuleKey })
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, ok := s.users[key]; ok {
		return auth.User{}, auth.ErrConflict
	}
	u.CreatedAt = s.now().UTC()
	s.users[key] = u
	return u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (s *Store) AppendAuditEntry(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, cloneEntry(e))
	return nil
}

// ListAuditEntries scans newest first; entries are appended in creation order.
func (s *Store) ListAuditEntries(_ context.Context, f audit.Filter) ([]audit.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		out   []audit.Entry
		total int
	)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !f.Matches(e) {
			continue
		}
		if total >= f.Offset && len(out) < f.Limit {
			out = append(out, cloneEntry(e))
		}
		total++
	}
	return out, total, nil
}

func (s *Store) AppendEvent(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(e))
	return nil
}

func (s *Store) ListEvents(_ context.Context, kind audit.Kind, entityID string, limit, offset int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		out  []audit.Event
		seen int
	)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if e.Kind != kind || e.EntityID != entityID {
			continue
		}
		if seen >= offset {
			out = append(out, cloneEvent(e))
		}
		seen++
	}
	return out, nil
}

func (s *Store) IncrementCounter(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

func (s *Store) CurrentCounter(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key], nil
}

func cloneModule(m auth.Module) auth.Module {
	m.Actions = slices.Clone(m.Actions)
	return m
}

// Snapshots are raw bytes; stored records never share them with callers.
func cloneEntry(e audit.Entry) audit.Entry {
	e.Before = slices.Clone(e.Before)
	e.After = slices.Clone(e.After)
	return e
}

func cloneEvent(e audit.Event) audit.Event {
	e.Before = slices.Clone(e.Before)
	e.After = slices.Clone(e.After)
	return e
}
