package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
	"github.com/vidunsterling-afk/itroom-sub000/internal/mutation"
)

const (
	auditEmployeeIDIssue     = "EMPLOYEE_ID_ISSUE"
	auditFingerprintDocIssue = "FINGERPRINT_DOC_ISSUE"

	actionCreate = "create"
)

type docNumberRequest struct {
	Year int `json:"year"`
}

func (a *API) handleIssueEmployeeID(w http.ResponseWriter, r *http.Request) {
	res, err := a.runner.Run(r.Context(), mutation.Op{
		Module:     auth.ModuleEmployees,
		Action:     actionCreate,
		AuditTag:   auditEmployeeIDIssue,
		EntityType: "employee",
		Summary:    "issue employee id",
		Apply: func(ctx context.Context) (mutation.Result, error) {
			id, err := a.seq.NextEmployeeID(ctx)
			if err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{
				EntityID: id,
				After:    map[string]string{"employee_id": id},
				Summary:  "issued employee id " + id,
				Value:    id,
			}, nil
		},
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"employee_id": res.EntityID})
}

// handleIssueFingerprintDocNo mints the next document number for the requested year,
// defaulting to the current one, and opens the fingerprint timeline with a CREATE event.
func (a *API) handleIssueFingerprintDocNo(w http.ResponseWriter, r *http.Request) {
	var req docNumberRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		validationError(w, r, err.Error())
		return
	}
	res, err := a.runner.Run(r.Context(), mutation.Op{
		Module:     auth.ModuleFingerprint,
		Action:     actionCreate,
		AuditTag:   auditFingerprintDocIssue,
		EntityType: "fingerprint",
		Summary:    "issue fingerprint document number",
		Event: &mutation.Event{
			Kind: audit.KindFingerprint,
			Type: audit.EventCreate,
			Note: "document number issued",
		},
		Apply: func(ctx context.Context) (mutation.Result, error) {
			docNo, err := a.seq.NextFingerprintDocNo(ctx, req.Year)
			if err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{
				EntityID: docNo,
				After:    map[string]string{"doc_no": docNo},
				Summary:  "issued fingerprint document " + docNo,
				Value:    docNo,
			}, nil
		},
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"doc_no": res.EntityID})
}

func (a *API) handleGetSequence(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.RequireAdmin(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	series := chi.URLParam(r, "series")
	v, err := a.seq.Current(r.Context(), series)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": series, "value": v})
}
