package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
)

const tracerName = "editorial-workflow-api/services"

// BlobStore is the file-storage port. The engine only checks that a
// reference exists and never reads the content behind it.
type BlobStore interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

// WorkflowEngine runs every editorial operation: gate, per-submission lock,
// one store transaction, then audit and notifications after commit.
type WorkflowEngine struct {
	store    WorkflowStore
	audit    *AuditWriter
	notify   *Dispatcher
	workload *WorkloadTracker
	blobs    BlobStore
	cfg      config.WorkflowConfig
	locks    *keyedMutex
	tracer   trace.Tracer
	now      func() time.Time
}

type EngineOption func(*WorkflowEngine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *WorkflowEngine) {
		e.now = now
		e.audit.now = now
	}
}

func WithBlobStore(blobs BlobStore) EngineOption {
	return func(e *WorkflowEngine) {
		e.blobs = blobs
	}
}

func NewWorkflowEngine(store WorkflowStore, sink AuditSink, notifier Notifier, cfg config.WorkflowConfig, opts ...EngineOption) *WorkflowEngine {
	e := &WorkflowEngine{
		store:    store,
		audit:    NewAuditWriter(sink, cfg.Audit),
		notify:   NewDispatcher(notifier, cfg.NotifyTimeout),
		workload: NewWorkloadTracker(store, cfg.Matching.MaxConcurrent),
		cfg:      cfg,
		locks:    newKeyedMutex(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close stops pending notifications.
func (e *WorkflowEngine) Close() {
	e.notify.Close()
}

// WaitNotifications blocks until queued notifications have been handed off.
func (e *WorkflowEngine) WaitNotifications() {
	e.notify.Wait()
}

// AuditIncidents reports how many audit records were lost since start.
func (e *WorkflowEngine) AuditIncidents() int64 {
	return e.audit.Incidents()
}

func (e *WorkflowEngine) Config() config.WorkflowConfig {
	return e.cfg
}

func (e *WorkflowEngine) startSpan(ctx context.Context, name string, actor models.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.Int64("workflow.actor.id", int64(actor.ID)),
		attribute.String("workflow.actor.role", actor.Role.String()),
	)
	return e.tracer.Start(ctx, "workflow."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !IsWarning(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// authorize is the RBAC gate. A denial is audited as ACCESS_DENIED with no
// after-state, and nothing else runs.
func (e *WorkflowEngine) authorize(ctx context.Context, actor models.Actor, operation, objectType string, objectID uint, caps ...Capability) error {
	if actor.Role.Valid() && HasAny(actor.Role, caps...) {
		return nil
	}
	return e.deny(ctx, actor, operation, objectType, objectID, caps)
}

func (e *WorkflowEngine) deny(ctx context.Context, actor models.Actor, operation, objectType string, objectID uint, caps []Capability) error {
	meta := map[string]any{"operation": operation}
	if len(caps) > 0 {
		meta["required"] = capabilityNames(caps)
	}
	if err := e.audit.Record(ctx, AuditEntry{
		Actor:      &actor,
		Action:     ActionAccessDenied,
		ObjectType: objectType,
		ObjectID:   objectID,
		Metadata:   meta,
	}); err != nil {
		log.Printf("access denied for user %d on %s not audited: %v", actor.ID, operation, err)
	}
	return newError(KindForbidden, "%s is not permitted for role %s", operation, actor.Role)
}

// lockSubmission serialises mutations of one submission within this process.
// The version column guards against other processes.
func (e *WorkflowEngine) lockSubmission(submissionID uint) func() {
	return e.locks.Lock(submissionID)
}

// record writes an audit entry after commit. The returned error is nil or
// an AuditDegraded warning.
func (e *WorkflowEngine) record(ctx context.Context, actor models.Actor, entry AuditEntry) error {
	entry.Actor = &actor
	return e.audit.Record(ctx, entry)
}

func (e *WorkflowEngine) dispatch(userID uint, eventType string, payload map[string]string) {
	e.notify.Dispatch(userID, eventType, payload)
}

// applyTransition moves sub to target inside tx, bumping its version.
// Capability checks happen before this point.
func (e *WorkflowEngine) applyTransition(ctx context.Context, tx WorkflowStore, sub *models.Submission, target models.SubmissionStatus) error {
	if err := stepStatus(sub, target); err != nil {
		return err
	}
	return tx.UpdateSubmission(ctx, sub, sub.Version)
}

// stepStatus sets target on sub when the edge exists, without persisting.
func stepStatus(sub *models.Submission, target models.SubmissionStatus) error {
	if !IsValidTransition(sub.Status, target) {
		return newError(KindInvalidTransition, "cannot move submission %d from %s to %s", sub.SubmissionID, sub.Status, target)
	}
	sub.Status = target
	return nil
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
