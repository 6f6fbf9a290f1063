package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
)

const auditAuthLogin = "AUTH_LOGIN"

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresAt time.Time      `json:"expires_at"`
	Principal auth.Principal `json:"principal"`
}

type moduleAccess struct {
	Module  string         `json:"module"`
	Name    string         `json:"name"`
	Actions auth.ActionSet `json:"actions"`
}

type meResponse struct {
	Principal auth.Principal `json:"principal"`
	Modules   []moduleAccess `json:"modules"`
}

type authorizeResponse struct {
	Module   string `json:"module"`
	Action   string `json:"action"`
	Decision string `json:"decision"`
	Allowed  bool   `json:"allowed"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		validationError(w, r, err.Error())
		return
	}
	username := strings.TrimSpace(strings.ToLower(req.Username))

	principal, token, expiresAt, err := a.authn.Login(r.Context(), username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			a.audit.Record(r.Context(), audit.Input{
				ActorUsername: username,
				Action:        auditAuthLogin,
				Module:        auth.ModuleAuth,
				Status:        audit.StatusFail,
				EntityType:    "user",
				Summary:       "login rejected",
			})
		}
		handleError(w, r, err)
		return
	}

	a.audit.Record(r.Context(), audit.Input{
		ActorUserID:   principal.UserID,
		ActorUsername: principal.Username,
		Action:        auditAuthLogin,
		Module:        auth.ModuleAuth,
		Status:        audit.StatusSuccess,
		EntityType:    "user",
		EntityID:      principal.UserID,
		Summary:       "token issued",
		After: map[string]any{
			"role":       principal.Role,
			"expires_at": expiresAt.Format(time.RFC3339),
		},
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		Principal: principal,
	})
}

// handleMe lists, for each active module, the actions the caller's role may perform.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	mods, err := a.perms.ListModules(r.Context(), false)
	if err != nil {
		handleError(w, r, err)
		return
	}
	access := make([]moduleAccess, 0, len(mods))
	for _, m := range mods {
		allowed := auth.ActionSet{}
		for _, action := range m.Actions {
			d, err := a.gate.Authorize(r.Context(), principal.Role, m.Key, action)
			if err != nil {
				handleError(w, r, err)
				return
			}
			if d == auth.Allow {
				allowed = append(allowed, action)
			}
		}
		access = append(access, moduleAccess{Module: m.Key, Name: m.Name, Actions: allowed})
	}
	writeJSON(w, http.StatusOK, meResponse{Principal: principal, Modules: access})
}

func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	module := strings.TrimSpace(strings.ToLower(q.Get("module")))
	action := strings.TrimSpace(strings.ToLower(q.Get("action")))
	if module == "" || action == "" {
		validationError(w, r, "module and action are required")
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	d, err := a.gate.Authorize(r.Context(), principal.Role, module, action)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{
		Module:   module,
		Action:   action,
		Decision: d.String(),
		Allowed:  d == auth.Allow,
	})
}
