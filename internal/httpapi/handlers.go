package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
	"github.com/vidunsterling-afk/itroom-sub000/internal/mutation"
	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
	"github.com/vidunsterling-afk/itroom-sub000/internal/sequence"
)

const serviceName = "itroom-api"

// ReadyProbe reports whether backing storage is reachable.
type ReadyProbe interface {
	Ping(ctx context.Context) error
}

// Deps wires the HTTP layer to the services it exposes.
type Deps struct {
	Permissions *auth.PermissionService
	Gate        *auth.Gate
	Authn       *auth.Authenticator
	Audit       *audit.Recorder
	Sequences   *sequence.Generator
	Runner      *mutation.Runner
	Ready       ReadyProbe
	Version     string

	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	// TrustedProxies may set X-Forwarded-For; it is ignored from anyone else.
	TrustedProxies []netip.Prefix
}

// API is the HTTP layer.
type API struct {
	perms  *auth.PermissionService
	gate   *auth.Gate
	authn  *auth.Authenticator
	audit  *audit.Recorder
	seq    *sequence.Generator
	runner *mutation.Runner
	ready  ReadyProbe

	version    string
	ratePerSec float64
	rateBurst  int
	maxBody    int64
	trusted    []netip.Prefix
}

func New(d Deps) (*API, error) {
	switch {
	case d.Permissions == nil:
		return nil, errors.New("permission service is required")
	case d.Gate == nil:
		return nil, errors.New("authorization gate is required")
	case d.Authn == nil:
		return nil, errors.New("authenticator is required")
	case d.Audit == nil:
		return nil, errors.New("audit recorder is required")
	case d.Sequences == nil:
		return nil, errors.New("sequence generator is required")
	case d.Runner == nil:
		return nil, errors.New("mutation runner is required")
	}
	a := &API{
		perms:      d.Permissions,
		gate:       d.Gate,
		authn:      d.Authn,
		audit:      d.Audit,
		seq:        d.Sequences,
		runner:     d.Runner,
		ready:      d.Ready,
		version:    d.Version,
		ratePerSec: d.RateLimitRPS,
		rateBurst:  d.RateLimitBurst,
		maxBody:    d.MaxBodyBytes,
		trusted:    d.TrustedProxies,
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	return a, nil
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(ClientIP(a.trusted))
	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(obs.Instrument)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(func(next http.Handler) http.Handler { return RateLimit(next, a.rateBurst, a.ratePerSec) })
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, a.maxBody) })

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Method(http.MethodGet, "/metrics", obs.Handler())
	r.Post("/v1/auth/token", a.handleAuthToken)

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)

		r.Get("/v1/me", a.handleMe)
		r.Get("/v1/authorize", a.handleAuthorize)

		r.Get("/v1/modules", a.handleListModules)
		r.Post("/v1/modules", a.handleCreateModule)
		r.Patch("/v1/modules/{key}", a.handleUpdateModule)

		r.Get("/v1/permissions/staff", a.handleListStaffPermissions)
		r.Get("/v1/permissions/staff/{module}", a.handleGetStaffPermission)
		r.Put("/v1/permissions/staff/{module}", a.handleUpsertStaffPermission)
		r.Delete("/v1/permissions/cache", a.handleInvalidateCache)

		r.Get("/v1/audit-logs", a.handleAuditLogs)
		r.Get("/v1/entities/{kind}/{id}/events", a.handleEntityEvents)

		r.Post("/v1/employees/ids", a.handleIssueEmployeeID)
		r.Post("/v1/fingerprint/doc-numbers", a.handleIssueFingerprintDocNo)
		r.Get("/v1/sequences/{series}", a.handleGetSequence)
	})
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := checkReady(r.Context(), a.ready); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// checkReady pings the probe and mirrors the outcome into the readiness gauge.
func checkReady(ctx context.Context, probe ReadyProbe) error {
	if probe == nil {
		obs.SetReady(true)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := probe.Ping(ctx)
	obs.SetReady(err == nil)
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
