package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

type fakeStore struct {
	mu          sync.Mutex
	modules     map[string]Module
	permissions map[string]Permission
	users       map[string]User

	getPermissionCalls int
	getPermissionErr   error
	getModuleErr       error
}

func newFakeStore(mods ...Module) *fakeStore {
	s := &fakeStore{
		modules:     map[string]Module{},
		permissions: map[string]Permission{},
		users:       map[string]User{},
	}
	for _, m := range mods {
		s.modules[m.Key] = m
	}
	return s
}

func (s *fakeStore) CreateModule(_ context.Context, m Module) (Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[m.Key]; ok {
		return Module{}, ErrConflict
	}
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	s.modules[m.Key] = m
	return m, nil
}

func (s *fakeStore) GetModule(_ context.Context, key string) (Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getModuleErr != nil {
		return Module{}, s.getModuleErr
	}
	m, ok := s.modules[key]
	if !ok {
		return Module{}, ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) ListModules(_ context.Context, includeInactive bool) ([]Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Module
	for _, m := range s.modules {
		if m.IsActive || includeInactive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeStore) UpdateModule(_ context.Context, key string, upd ModuleUpdate) (Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[key]
	if !ok {
		return Module{}, ErrNotFound
	}
	if upd.Name != nil {
		m.Name = *upd.Name
	}
	if upd.IsActive != nil {
		m.IsActive = *upd.IsActive
	}
	if upd.Actions != nil {
		m.Actions = ActionSet(upd.Actions)
	}
	s.modules[key] = m
	return m, nil
}

func (s *fakeStore) GetPermission(_ context.Context, role Role, moduleKey string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getPermissionCalls++
	if s.getPermissionErr != nil {
		return Permission{}, s.getPermissionErr
	}
	p, ok := s.permissions[string(role)+"/"+moduleKey]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) UpsertPermission(_ context.Context, p Permission) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	s.permissions[string(p.Role)+"/"+p.ModuleKey] = p
	return p, nil
}

func (s *fakeStore) ListPermissions(_ context.Context, role Role) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Permission
	for _, p := range s.permissions {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

// setStaff writes a grant directly, bypassing the service and its cache invalidation.
func (s *fakeStore) setStaff(moduleKey string, actions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[string(RoleStaff)+"/"+moduleKey] = Permission{Role: RoleStaff, ModuleKey: moduleKey, Actions: ActionSet(actions)}
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPermissionCalls
}

func (s *fakeStore) CreateUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return User{}, ErrConflict
	}
	u.CreatedAt = time.Now().UTC()
	s.users[u.Username] = u
	return u, nil
}

func (s *fakeStore) FindUserByUsername(_ context.Context, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func assetsModule() Module {
	return Module{Key: "assets", Name: "Assets", IsActive: true, Actions: ActionSet{"read", "create", "update", "delete", "assign"}}
}
