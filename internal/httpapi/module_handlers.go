package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
	"github.com/vidunsterling-afk/itroom-sub000/internal/mutation"
)

const (
	auditModuleCreate = "MODULE_CREATE"
	auditModuleUpdate = "MODULE_UPDATE"

	// actionManage is never declared by a module, so only admins pass it.
	actionManage = "manage"
)

type createModuleRequest struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Actions []string `json:"actions"`
}

type updateModuleRequest struct {
	Name     *string  `json:"name"`
	IsActive *bool    `json:"is_active"`
	Actions  []string `json:"actions"`
}

// handleListModules serves the module catalog under permissions:read. Inactive modules are
// included only for admins asking with all=true.
func (a *API) handleListModules(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.Check(r.Context(), auth.ModulePermissions, auth.ActionRead); err != nil {
		handleError(w, r, err)
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	if all {
		if err := a.gate.RequireAdmin(r.Context()); err != nil {
			handleError(w, r, err)
			return
		}
	}
	mods, err := a.perms.ListModules(r.Context(), all)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if mods == nil {
		mods = []auth.Module{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": mods})
}

func (a *API) handleCreateModule(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireAdmin(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	var req createModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		validationError(w, r, err.Error())
		return
	}
	res, err := a.runner.Run(r.Context(), mutation.Op{
		Module:     auth.ModulePermissions,
		Action:     actionManage,
		AuditTag:   auditModuleCreate,
		EntityType: "module",
		EntityID:   req.Key,
		Summary:    "create module " + req.Key,
		Apply: func(ctx context.Context) (mutation.Result, error) {
			mod, err := a.perms.CreateModule(ctx, req.Key, req.Name, req.Actions)
			if err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{EntityID: mod.Key, After: mod, Value: mod}, nil
		},
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	mod := res.Value.(auth.Module)
	w.Header().Set("Location", "/v1/modules/"+mod.Key)
	writeJSON(w, http.StatusCreated, mod)
}

func (a *API) handleUpdateModule(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireAdmin(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	var req updateModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		validationError(w, r, err.Error())
		return
	}
	key := chi.URLParam(r, "key")
	before, err := a.perms.GetModule(r.Context(), key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	res, err := a.runner.Run(r.Context(), mutation.Op{
		Module:     auth.ModulePermissions,
		Action:     actionManage,
		AuditTag:   auditModuleUpdate,
		EntityType: "module",
		EntityID:   before.Key,
		Summary:    "update module " + before.Key,
		Before:     before,
		Apply: func(ctx context.Context) (mutation.Result, error) {
			mod, err := a.perms.UpdateModule(ctx, before.Key, auth.ModuleUpdate{
				Name:     req.Name,
				IsActive: req.IsActive,
				Actions:  req.Actions,
			})
			if err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{After: mod, Value: mod}, nil
		},
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}
