// Package mutation runs state-changing operations through the authorization gate and
// the audit trail in a fixed order: check, apply, then record.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
)

// Event names the timeline entry written for a successful mutation.
type Event struct {
	Kind audit.Kind
	Type audit.EventType
	Note string
}

// Result is what a successful Apply reports back for the audit trail.
type Result struct {
	EntityID string
	Before   any
	After    any
	Summary  string
	// Value is returned to the caller untouched.
	Value any
}

// Op describes one guarded mutation.
type Op struct {
	Module     string
	Action     string
	AuditTag   string
	EntityType string
	EntityID   string
	Summary    string
	Before     any
	Event      *Event
	Apply      func(ctx context.Context) (Result, error)
}

// Runner executes Ops.
type Runner struct {
	gate     *auth.Gate
	recorder *audit.Recorder
}

func NewRunner(gate *auth.Gate, recorder *audit.Recorder) (*Runner, error) {
	if gate == nil {
		return nil, errors.New("authorization gate is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	return &Runner{gate: gate, recorder: recorder}, nil
}

// Run authorizes op for the principal in ctx, applies it and records the outcome.
// Authorization failures return before Apply is called and leave no trace. Audit and
// event writes happen after Apply returns and never change its result.
func (r *Runner) Run(ctx context.Context, op Op) (Result, error) {
	if op.Apply == nil {
		return Result{}, fmt.Errorf("%w: mutation has no apply step", auth.ErrInvalidInput)
	}
	if strings.TrimSpace(op.AuditTag) == "" {
		return Result{}, fmt.Errorf("%w: audit tag is required", auth.ErrInvalidInput)
	}
	if err := r.gate.Check(ctx, op.Module, op.Action); err != nil {
		return Result{}, err
	}

	res, err := op.Apply(ctx)
	// Recording outlives the request; the mutation is already durable.
	recordCtx := context.WithoutCancel(ctx)
	if err != nil {
		r.recorder.Record(recordCtx, audit.Input{
			Action:     op.AuditTag,
			Module:     op.Module,
			Status:     audit.StatusFail,
			EntityType: op.EntityType,
			EntityID:   op.EntityID,
			Summary:    failureSummary(op, err),
			Before:     op.Before,
		})
		return Result{}, err
	}

	entityID := firstNonEmpty(res.EntityID, op.EntityID)
	before := res.Before
	if before == nil {
		before = op.Before
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.recorder.Record(recordCtx, audit.Input{
			Action:     op.AuditTag,
			Module:     op.Module,
			Status:     audit.StatusSuccess,
			EntityType: op.EntityType,
			EntityID:   entityID,
			Summary:    firstNonEmpty(res.Summary, op.Summary),
			Before:     before,
			After:      res.After,
		})
	}()
	if op.Event != nil && entityID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.recorder.Events(op.Event.Kind).Record(recordCtx, audit.EventInput{
				EntityID: entityID,
				Type:     op.Event.Type,
				Before:   before,
				After:    res.After,
				Note:     op.Event.Note,
			})
		}()
	}
	wg.Wait()
	res.EntityID = entityID
	return res, nil
}

func failureSummary(op Op, err error) string {
	msg := "failed"
	switch {
	case errors.Is(err, auth.ErrNotFound):
		msg = "failed: not found"
	case errors.Is(err, auth.ErrConflict):
		msg = "failed: conflict"
	case errors.Is(err, auth.ErrInvalidInput):
		msg = "failed: invalid input"
	}
	if s := strings.TrimSpace(op.Summary); s != "" {
		return s + " (" + msg + ")"
	}
	return msg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
