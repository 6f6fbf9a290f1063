package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
)

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.Check(r.Context(), auth.ModuleAudit, auth.ActionRead); err != nil {
		handleError(w, r, err)
		return
	}
	q := r.URL.Query()
	limit, err := parsePositiveInt("limit", q.Get("limit"), audit.DefaultPageSize, 1, audit.MaxPageSize)
	if err != nil {
		validationError(w, r, err.Error())
		return
	}
	offset, err := parsePositiveInt("offset", q.Get("offset"), 0, 0, 1<<31-1)
	if err != nil {
		validationError(w, r, err.Error())
		return
	}
	from, err := parseTime("from", q.Get("from"))
	if err != nil {
		validationError(w, r, err.Error())
		return
	}
	to, err := parseTime("to", q.Get("to"))
	if err != nil {
		validationError(w, r, err.Error())
		return
	}
	page, err := a.audit.List(r.Context(), audit.Filter{
		Module:      q.Get("module"),
		ActorUserID: strings.TrimSpace(q.Get("actor_user_id")),
		Status:      audit.Status(strings.TrimSpace(q.Get("status"))),
		EntityType:  strings.TrimSpace(q.Get("entity_type")),
		EntityID:    strings.TrimSpace(q.Get("entity_id")),
		From:        from,
		To:          to,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleEntityEvents(w http.ResponseWriter, r *http.Request) {
	kind, ok := audit.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, r, http.StatusNotFound, codeNotFound, "unknown entity kind")
		return
	}
	if err := a.gate.Check(r.Context(), kind.Module(), auth.ActionRead); err != nil {
		handleError(w, r, err)
		return
	}
	q := r.URL.Query()
	limit, err := parsePositiveInt("limit", q.Get("limit"), audit.DefaultPageSize, 1, audit.MaxPageSize)
	if err != nil {
		validationError(w, r, err.Error())
		return
	}
	offset, err := parsePositiveInt("offset", q.Get("offset"), 0, 0, 1<<31-1)
	if err != nil {
		validationError(w, r, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	events, err := a.audit.Events(kind).List(r.Context(), id, limit, offset)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":      kind,
		"entity_id": id,
		"events":    events,
	})
}

// parseTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseTime(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name)
}
