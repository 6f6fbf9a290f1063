package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var moduleKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// PermissionService manages the module catalog and staff grants.
type PermissionService struct {
	store PermissionStore
	cache *PermissionCache
}

func NewPermissionService(store PermissionStore, cache *PermissionCache) (*PermissionService, error) {
	if store == nil {
		return nil, errors.New("permission store is required")
	}
	if cache == nil {
		cache = NewPermissionCache(store, DefaultCacheTTL, DefaultCacheSize)
	}
	return &PermissionService{store: store, cache: cache}, nil
}

// Cache exposes the cache so it can back a Gate.
func (s *PermissionService) Cache() *PermissionCache { return s.cache }

// StaffActions returns the staff actions for moduleKey through the cache.
func (s *PermissionService) StaffActions(ctx context.Context, moduleKey string) (ActionSet, error) {
	return s.cache.StaffActions(ctx, moduleKey)
}

// InvalidatePermissionCache drops one module's entry, or all entries for an empty key.
func (s *PermissionService) InvalidatePermissionCache(moduleKey string) {
	s.cache.Invalidate(moduleKey)
}

// UpsertStaffPermission replaces the staff action set for a module. Actions the module
// does not declare are dropped rather than rejected, and read is always kept.
func (s *PermissionService) UpsertStaffPermission(ctx context.Context, moduleKey string, actions []string) (Permission, error) {
	key, err := normalizeModuleKey(moduleKey)
	if err != nil {
		return Permission{}, err
	}
	mod, err := s.store.GetModule(ctx, key)
	if err != nil {
		return Permission{}, storageErr("get module", err)
	}
	perm, err := s.store.UpsertPermission(ctx, Permission{
		Role:      RoleStaff,
		ModuleKey: key,
		Actions:   staffGrant(mod.Actions, actions),
	})
	if err != nil {
		return Permission{}, storageErr("upsert permission", err)
	}
	s.cache.Invalidate(key)
	return perm, nil
}

// StaffPermission returns the persisted staff grant, or an empty grant when none exists.
func (s *PermissionService) StaffPermission(ctx context.Context, moduleKey string) (Permission, error) {
	key, err := normalizeModuleKey(moduleKey)
	if err != nil {
		return Permission{}, err
	}
	if _, err := s.store.GetModule(ctx, key); err != nil {
		return Permission{}, storageErr("get module", err)
	}
	perm, err := s.store.GetPermission(ctx, RoleStaff, key)
	if errors.Is(err, ErrNotFound) {
		return Permission{Role: RoleStaff, ModuleKey: key, Actions: ActionSet{}}, nil
	}
	if err != nil {
		return Permission{}, storageErr("get permission", err)
	}
	return perm, nil
}

func (s *PermissionService) ListStaffPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.store.ListPermissions(ctx, RoleStaff)
	if err != nil {
		return nil, storageErr("list permissions", err)
	}
	return perms, nil
}

// CreateModule adds a module to the catalog. "read" is always declared.
func (s *PermissionService) CreateModule(ctx context.Context, key, name string, actions []string) (Module, error) {
	key, err := normalizeModuleKey(key)
	if err != nil {
		return Module{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Module{}, fmt.Errorf("%w: module name is required", ErrInvalidInput)
	}
	mod, err := s.store.CreateModule(ctx, Module{
		Key:      key,
		Name:     name,
		IsActive: true,
		Actions:  withRead(actions),
	})
	if err != nil {
		return Module{}, storageErr("create module", err)
	}
	return mod, nil
}

// UpdateModule edits a module. Cached grants are not revoked early; the loader
// re-filters against the new action list once the cache entry expires.
func (s *PermissionService) UpdateModule(ctx context.Context, key string, upd ModuleUpdate) (Module, error) {
	key, err := normalizeModuleKey(key)
	if err != nil {
		return Module{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Module{}, fmt.Errorf("%w: module name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Actions != nil {
		upd.Actions = withRead(upd.Actions)
	}
	mod, err := s.store.UpdateModule(ctx, key, upd)
	if err != nil {
		return Module{}, storageErr("update module", err)
	}
	return mod, nil
}

func (s *PermissionService) GetModule(ctx context.Context, key string) (Module, error) {
	key, err := normalizeModuleKey(key)
	if err != nil {
		return Module{}, err
	}
	mod, err := s.store.GetModule(ctx, key)
	if err != nil {
		return Module{}, storageErr("get module", err)
	}
	return mod, nil
}

func (s *PermissionService) ListModules(ctx context.Context, includeInactive bool) ([]Module, error) {
	mods, err := s.store.ListModules(ctx, includeInactive)
	if err != nil {
		return nil, storageErr("list modules", err)
	}
	return mods, nil
}

// EnsureBuiltinModules creates any catalog module that does not exist yet.
func (s *PermissionService) EnsureBuiltinModules(ctx context.Context) error {
	for _, m := range BuiltinModules {
		_, err := s.store.GetModule(ctx, m.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return storageErr("get module", err)
		}
		if _, err := s.store.CreateModule(ctx, m); err != nil && !errors.Is(err, ErrConflict) {
			return storageErr("create module", err)
		}
	}
	return nil
}

func normalizeModuleKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return "", fmt.Errorf("%w: module key is required", ErrInvalidInput)
	}
	if !moduleKeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: malformed module key %q", ErrInvalidInput, key)
	}
	return key, nil
}

func withRead(actions []string) ActionSet {
	set := normalizeActions(actions)
	if set.Has(ActionRead) {
		return set
	}
	return append(ActionSet{ActionRead}, set...)
}
