package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"editorial-workflow-api/models"
	"editorial-workflow-api/utils"
)

type SubmitInput struct {
	Title             string
	Abstract          string
	AbstractSecondary *string
	Keywords          []string
	CategoryID        *uint
	CategoryName      string
	SecurityLevel     int
}

type TransitionInput struct {
	SubmissionID    uint
	Target          models.SubmissionStatus
	ExpectedVersion int
	Reason          string
}

// Submit creates a NEW submission owned by actor.
func (e *WorkflowEngine) Submit(ctx context.Context, actor models.Actor, in SubmitInput) (sub *models.Submission, err error) {
	ctx, span := e.startSpan(ctx, "submit", actor)
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "submit", ObjectSubmission, 0, CapSubmit); err != nil {
		return nil, err
	}
	title := utils.SanitizeInput(in.Title)
	if title == "" {
		return nil, newError(KindValidation, "title is required")
	}
	if in.SecurityLevel < 0 {
		return nil, newError(KindValidation, "security level must not be negative")
	}

	sub = &models.Submission{
		Title:             title,
		Abstract:          strings.TrimSpace(in.Abstract),
		AbstractSecondary: in.AbstractSecondary,
		Keywords:          utils.NormalizeKeywords(in.Keywords),
		CategoryID:        in.CategoryID,
		CategoryName:      utils.SanitizeInput(in.CategoryName),
		AuthorID:          actor.ID,
		SecurityLevel:     in.SecurityLevel,
		Status:            models.StatusNew,
		Version:           1,
		CreatedAt:         e.now().UTC(),
	}
	if err := e.store.InTx(ctx, func(tx WorkflowStore) error {
		return tx.CreateSubmission(ctx, sub)
	}); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("workflow.submission.id", int64(sub.SubmissionID)))

	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionSubmissionCreated,
		ObjectType: ObjectSubmission,
		ObjectID:   sub.SubmissionID,
		After:      sub.Clone(),
	})
	e.dispatch(sub.AuthorID, EventSubmissionReceived, map[string]string{
		"submission_id": idString(sub.SubmissionID),
		"title":         sub.Title,
	})
	return sub, warn
}

// Transition moves a submission along one edge of the lifecycle. Edges out
// of UNDER_REVIEW close a round and are only reachable through Decide.
func (e *WorkflowEngine) Transition(ctx context.Context, actor models.Actor, in TransitionInput) (sub *models.Submission, err error) {
	ctx, span := e.startSpan(ctx, "transition", actor,
		attribute.Int64("workflow.submission.id", int64(in.SubmissionID)),
		attribute.String("workflow.target", string(in.Target)),
	)
	defer func() { endSpan(span, err) }()

	caps := targetCapabilities(in.Target)
	if len(caps) == 0 {
		caps = transitionCapabilities
	}
	if err := e.authorize(ctx, actor, "transition:"+string(in.Target), ObjectSubmission, in.SubmissionID, caps...); err != nil {
		return nil, err
	}
	if !in.Target.Valid() {
		return nil, newError(KindInvalidTransition, "unknown target status %q", in.Target)
	}
	if len(targetCapabilities(in.Target)) == 0 {
		return nil, newError(KindInvalidTransition, "no transition leads to %s", in.Target)
	}
	if in.ExpectedVersion <= 0 {
		return nil, newError(KindValidation, "expected version is required")
	}

	unlock := e.lockSubmission(in.SubmissionID)
	defer unlock()

	var before models.Submission
	var from models.SubmissionStatus
	denied := false
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		current, err := tx.GetSubmission(ctx, in.SubmissionID)
		if err != nil {
			return err
		}
		if !IsValidTransition(current.Status, in.Target) {
			return newError(KindInvalidTransition, "cannot move submission %d from %s to %s", current.SubmissionID, current.Status, in.Target)
		}
		if DecisionEdge(current.Status, in.Target) {
			return newError(KindInvalidTransition, "leaving %s requires an editorial decision", current.Status)
		}
		from = current.Status
		if !mayTakeEdge(actor, current, in.Target) {
			denied = true
			return ErrForbidden
		}
		if current.Version != in.ExpectedVersion {
			return newError(KindConcurrentModification, "submission %d is at version %d, not %d", current.SubmissionID, current.Version, in.ExpectedVersion)
		}
		before = current.Clone()
		if err := e.applyTransition(ctx, tx, current, in.Target); err != nil {
			return err
		}
		sub = current
		return nil
	})
	if denied {
		return nil, e.deny(ctx, actor, "transition:"+string(in.Target), ObjectSubmission, in.SubmissionID, EdgeCapabilities(from, in.Target))
	}
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"from": string(before.Status), "to": string(sub.Status)}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		meta["reason"] = reason
	}
	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionStatusChanged,
		ObjectType: ObjectSubmission,
		ObjectID:   sub.SubmissionID,
		Before:     before,
		After:      sub.Clone(),
		Metadata:   meta,
	})
	e.dispatch(sub.AuthorID, EventStatusChanged, map[string]string{
		"submission_id": idString(sub.SubmissionID),
		"title":         sub.Title,
		"from":          string(before.Status),
		"to":            string(sub.Status),
	})
	return sub, warn
}

// mayTakeEdge applies the per-edge capability table, plus ownership for
// actors whose only claim is canSubmit.
func mayTakeEdge(actor models.Actor, sub *models.Submission, target models.SubmissionStatus) bool {
	held := false
	for _, c := range EdgeCapabilities(sub.Status, target) {
		if !c.Allows(actor.Role) {
			continue
		}
		if c != CapSubmit {
			return true
		}
		held = true
	}
	return held && sub.AuthorID == actor.ID
}

// GetSubmission loads a submission with its rounds and assignments. Authors
// see their own work and reviewers see submissions they are assigned to.
func (e *WorkflowEngine) GetSubmission(ctx context.Context, actor models.Actor, submissionID uint) (*models.Submission, error) {
	sub, err := e.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	rounds, err := e.store.ListRounds(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	assignments, err := e.store.ListAssignments(ctx, submissionID, 0)
	if err != nil {
		return nil, err
	}
	if !maySeeSubmission(actor, sub, assignments) {
		return nil, e.deny(ctx, actor, "view submission", ObjectSubmission, submissionID, nil)
	}

	byRound := map[int][]models.ReviewAssignment{}
	for _, a := range assignments {
		byRound[a.RoundNo] = append(byRound[a.RoundNo], a)
	}
	for i := range rounds {
		rounds[i].Assignments = byRound[rounds[i].RoundNo]
	}
	sub.Rounds = rounds
	return sub, nil
}

func maySeeSubmission(actor models.Actor, sub *models.Submission, assignments []models.ReviewAssignment) bool {
	if !actor.Role.Valid() {
		return false
	}
	if CanDecide(actor.Role) || CanLayout(actor.Role) || CanAdmin(actor.Role) {
		return true
	}
	if sub.AuthorID == actor.ID {
		return true
	}
	if CanReview(actor.Role) {
		for _, a := range assignments {
			if a.ReviewerID == actor.ID {
				return true
			}
		}
	}
	return false
}
