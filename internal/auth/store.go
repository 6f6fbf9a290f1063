package auth

import "context"

// ModuleStore persists the module catalog.
type ModuleStore interface {
	CreateModule(ctx context.Context, m Module) (Module, error)
	GetModule(ctx context.Context, key string) (Module, error)
	ListModules(ctx context.Context, includeInactive bool) ([]Module, error)
	UpdateModule(ctx context.Context, key string, upd ModuleUpdate) (Module, error)
}

// PermissionStore persists (role, module) grants alongside the module catalog.
// GetPermission returns ErrNotFound when no row exists.
type PermissionStore interface {
	ModuleStore
	GetPermission(ctx context.Context, role Role, moduleKey string) (Permission, error)
	UpsertPermission(ctx context.Context, p Permission) (Permission, error)
	ListPermissions(ctx context.Context, role Role) ([]Permission, error)
}

// UserStore looks up accounts for token issuance.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
}
