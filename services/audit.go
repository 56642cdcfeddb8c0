package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
)

// Audit actions written by the engine.
const (
	ActionSubmissionCreated      = "SUBMISSION_CREATED"
	ActionStatusChanged          = "STATUS_CHANGED"
	ActionRoundOpened            = "ROUND_OPENED"
	ActionReviewerAdded          = "REVIEWER_ADDED"
	ActionReviewSubmitted        = "REVIEW_SUBMITTED"
	ActionReviewRated            = "REVIEW_RATED"
	ActionDecisionRecorded       = "DECISION_RECORDED"
	ActionReviewerProfileUpdated = "REVIEWER_PROFILE_UPDATED"
	ActionFileAttached           = "FILE_ATTACHED"
	ActionAccessDenied           = "ACCESS_DENIED"
)

const (
	ObjectSubmission = "submission"
	ObjectRound      = "review_round"
	ObjectAssignment = "review_assignment"
	ObjectReviewer   = "reviewer_profile"
	ObjectAttachment = "attachment"
)

// AuditEntry is what an engine operation asks the writer to record. A nil
// Actor is recorded as the system.
type AuditEntry struct {
	Actor      *models.Actor
	Action     string
	ObjectType string
	ObjectID   uint
	Before     any
	After      any
	Metadata   map[string]any
}

// AuditWriter appends records to an AuditSink outside any business
// transaction, retrying with exponential backoff before giving up.
type AuditWriter struct {
	sink      AuditSink
	cfg       config.AuditRetryConfig
	now       func() time.Time
	newID     func() string
	incidents atomic.Int64
}

func NewAuditWriter(sink AuditSink, cfg config.AuditRetryConfig) *AuditWriter {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	return &AuditWriter{
		sink:  sink,
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Incidents returns how many records have been lost since start.
func (w *AuditWriter) Incidents() int64 {
	return w.incidents.Load()
}

// Record builds and appends one record. It returns an AuditDegraded error when
// the sink stayed unavailable for every attempt.
func (w *AuditWriter) Record(ctx context.Context, entry AuditEntry) error {
	rec, err := w.build(entry)
	if err != nil {
		w.incidents.Add(1)
		log.Printf("audit incident: action=%s object=%s/%d encode: %v", entry.Action, entry.ObjectType, entry.ObjectID, err)
		return wrapError(KindAuditDegraded, err, "audit record %s could not be encoded", entry.Action)
	}

	ctx = persistentContext(ctx)
	expBackoff := backoff.NewExponentialBackOff()
	if w.cfg.InitialBackoff > 0 {
		expBackoff.InitialInterval = w.cfg.InitialBackoff
	}
	if w.cfg.MaxBackoff > 0 {
		expBackoff.MaxInterval = w.cfg.MaxBackoff
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		attemptRec := *rec
		if appendErr := w.sink.AppendAudit(ctx, &attemptRec); appendErr != nil {
			log.Printf("audit append attempt %d failed for %s: %v", attempt, rec.Action, appendErr)
			return struct{}{}, appendErr
		}
		rec.AuditID = attemptRec.AuditID
		return struct{}{}, nil
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(w.cfg.MaxTries))
	if err != nil {
		w.incidents.Add(1)
		log.Printf("audit incident: uuid=%s action=%s object=%s/%s lost after %d attempts: %v",
			rec.RecordUUID, rec.Action, rec.ObjectType, rec.ObjectID, attempt, err)
		return wrapError(KindAuditDegraded, err, "audit record %s not persisted", rec.Action)
	}
	return nil
}

func (w *AuditWriter) build(entry AuditEntry) (*models.AuditRecord, error) {
	rec := &models.AuditRecord{
		RecordUUID: w.newID(),
		Action:     entry.Action,
		ObjectType: entry.ObjectType,
		ObjectID:   strconv.FormatUint(uint64(entry.ObjectID), 10),
		CreatedAt:  w.now().UTC(),
	}
	if entry.Actor != nil && !entry.Actor.IsSystem() {
		id := entry.Actor.ID
		rec.ActorID = &id
		rec.ActorRole = entry.Actor.Role.String()
	}
	var err error
	if rec.Before, err = snapshot(entry.Before); err != nil {
		return nil, fmt.Errorf("before: %w", err)
	}
	if rec.After, err = snapshot(entry.After); err != nil {
		return nil, fmt.Errorf("after: %w", err)
	}
	if len(entry.Metadata) > 0 {
		if rec.Metadata, err = json.Marshal(entry.Metadata); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
	}
	return rec, nil
}

// snapshot encodes v, keeping nil (including typed nil pointers) as SQL NULL.
func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

// Query reads records back from the sink.
func (w *AuditWriter) Query(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error) {
	return w.sink.QueryAudit(ctx, filter)
}

// QueryAudit reads the audit trail. Admins only.
func (e *WorkflowEngine) QueryAudit(ctx context.Context, actor models.Actor, filter AuditFilter) ([]models.AuditRecord, error) {
	if err := e.authorize(ctx, actor, "query audit", "audit", 0, CapAdmin); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, newError(KindValidation, "audit range ends before it starts")
	}
	return e.audit.Query(ctx, filter)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
