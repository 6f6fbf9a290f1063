package auth

import (
	"slices"
	"strings"
	"time"
)

// ActionRead is mandatory on every module.
const ActionRead = "read"

// ActionSet is an ordered set of action names.
type ActionSet []string

// Has reports whether action is in the set.
func (s ActionSet) Has(action string) bool {
	return slices.Contains(s, action)
}

// Module is a business area with a declared set of permissible actions.
type Module struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	Actions   ActionSet `json:"actions"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModuleUpdate carries optional changes to a module. Nil fields are left untouched.
type ModuleUpdate struct {
	Name     *string
	IsActive *bool
	Actions  []string
}

// Permission is an explicit (role, module) grant.
type Permission struct {
	Role      Role      `json:"role"`
	ModuleKey string    `json:"module_key"`
	Actions   ActionSet `json:"actions"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account able to obtain a role claim.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// normalizeActions trims, lower-cases and dedupes action names, preserving first occurrence order.
func normalizeActions(values []string) ActionSet {
	if len(values) == 0 {
		return ActionSet{}
	}
	seen := make(map[string]struct{}, len(values))
	out := make(ActionSet, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// staffGrant is the effective staff set for a module: the requested actions the module
// declares, plus the mandatory read.
func staffGrant(declared ActionSet, requested []string) ActionSet {
	return filterActions(declared, append([]string{ActionRead}, requested...))
}

// filterActions keeps the requested actions that the module declares, in the module's order.
func filterActions(declared ActionSet, requested []string) ActionSet {
	want := normalizeActions(requested)
	out := make(ActionSet, 0, len(want))
	for _, a := range declared {
		if want.Has(a) {
			out = append(out, a)
		}
	}
	return out
}
