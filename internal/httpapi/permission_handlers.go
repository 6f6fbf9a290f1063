package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
	"github.com/vidunsterling-afk/itroom-sub000/internal/mutation"
)

const auditPermissionUpsert = "PERMISSION_UPSERT"

type upsertPermissionRequest struct {
	Actions []string `json:"actions"`
}

func (a *API) handleListStaffPermissions(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.Check(r.Context(), auth.ModulePermissions, auth.ActionRead); err != nil {
		handleError(w, r, err)
		return
	}
	perms, err := a.perms.ListStaffPermissions(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if perms == nil {
		perms = []auth.Permission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (a *API) handleGetStaffPermission(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.Check(r.Context(), auth.ModulePermissions, auth.ActionRead); err != nil {
		handleError(w, r, err)
		return
	}
	perm, err := a.perms.StaffPermission(r.Context(), chi.URLParam(r, "module"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

// handleUpsertStaffPermission replaces the staff grant on a module. Actions the module
// does not declare are silently dropped; the response shows what was stored.
func (a *API) handleUpsertStaffPermission(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireAdmin(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	var req upsertPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		validationError(w, r, err.Error())
		return
	}
	if req.Actions == nil {
		validationError(w, r, "actions are required")
		return
	}
	before, err := a.perms.StaffPermission(r.Context(), chi.URLParam(r, "module"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	res, err := a.runner.Run(r.Context(), mutation.Op{
		Module:     auth.ModulePermissions,
		Action:     actionManage,
		AuditTag:   auditPermissionUpsert,
		EntityType: "permission",
		EntityID:   string(auth.RoleStaff) + ":" + before.ModuleKey,
		Summary:    "set staff actions on " + before.ModuleKey,
		Before:     before,
		Apply: func(ctx context.Context) (mutation.Result, error) {
			perm, err := a.perms.UpsertStaffPermission(ctx, before.ModuleKey, req.Actions)
			if err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{
				After:   perm,
				Summary: "set staff actions on " + perm.ModuleKey + " to [" + strings.Join(perm.Actions, ",") + "]",
				Value:   perm,
			}, nil
		},
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

// handleInvalidateCache drops one module's cached grant, or every entry without ?module=.
func (a *API) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireAdmin(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	a.perms.InvalidatePermissionCache(strings.TrimSpace(strings.ToLower(r.URL.Query().Get("module"))))
	w.WriteHeader(http.StatusNoContent)
}
