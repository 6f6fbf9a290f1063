package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
)

// Role is the coarse identity class carried on every request.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAuditor Role = "auditor"
	RoleStaff   Role = "staff"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.TrimSpace(strings.ToLower(s))); r {
	case RoleAdmin, RoleAuditor, RoleStaff:
		return r, true
	default:
		return "", false
	}
}

// Decision is the outcome of an authorization check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// StaffActionSource resolves the actions granted to the staff role on a module.
type StaffActionSource interface {
	StaffActions(ctx context.Context, moduleKey string) (ActionSet, error)
}

// Gate decides whether a role may perform an action on a module.
type Gate struct {
	staff StaffActionSource
}

// NewGate constructs a gate backed by the staff action source (normally the permission cache).
func NewGate(staff StaffActionSource) *Gate {
	return &Gate{staff: staff}
}

// Authorize applies the role decision table. Unknown roles are denied.
func (g *Gate) Authorize(ctx context.Context, role Role, moduleKey, action string) (Decision, error) {
	moduleKey = strings.TrimSpace(strings.ToLower(moduleKey))
	action = strings.TrimSpace(strings.ToLower(action))
	if moduleKey == "" || action == "" {
		return Deny, nil
	}
	d, err := g.decide(ctx, role, moduleKey, action)
	obs.AuthzDecisions.WithLabelValues(roleLabel(role), d.String()).Inc()
	return d, err
}

func (g *Gate) decide(ctx context.Context, role Role, moduleKey, action string) (Decision, error) {
	switch role {
	case RoleAdmin:
		return Allow, nil
	case RoleAuditor:
		return Decision(action == ActionRead), nil
	case RoleStaff:
		if g.staff == nil {
			return Deny, nil
		}
		actions, err := g.staff.StaffActions(ctx, moduleKey)
		if err != nil {
			return Deny, err
		}
		return Decision(actions.Has(action)), nil
	default:
		return Deny, nil
	}
}

// Check authorizes the principal stored in ctx. It returns ErrUnauthenticated when no
// principal is present and ErrForbidden when the decision is deny.
func (g *Gate) Check(ctx context.Context, moduleKey, action string) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	d, err := g.Authorize(ctx, p.Role, moduleKey, action)
	if err != nil {
		return err
	}
	if d == Deny {
		return fmt.Errorf("%w: %s may not %s on %s", ErrForbidden, roleLabel(p.Role), action, moduleKey)
	}
	return nil
}

// RequireAdmin allows only the admin role.
func (g *Gate) RequireAdmin(ctx context.Context) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if p.Role != RoleAdmin {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func roleLabel(r Role) string {
	if _, ok := ParseRole(string(r)); ok {
		return string(r)
	}
	return "none"
}
