package services

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
)

type OpenRoundInput struct {
	SubmissionID uint
	ReviewerIDs  []uint
}

type SubmitReviewInput struct {
	AssignmentID   uint
	Recommendation models.Recommendation
	Score          *float64
	Form           json.RawMessage
}

// OpenRound assigns reviewers to the submission's next round: the DRAFT round
// left by a revision decision, or round 1. Either every assignment is created
// or none is.
func (e *WorkflowEngine) OpenRound(ctx context.Context, actor models.Actor, in OpenRoundInput) (round *models.ReviewRound, err error) {
	ctx, span := e.startSpan(ctx, "open_round", actor, attribute.Int64("workflow.submission.id", int64(in.SubmissionID)))
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "open round", ObjectSubmission, in.SubmissionID, CapDecide); err != nil {
		return nil, err
	}
	reviewerIDs := uniqueIDs(in.ReviewerIDs)
	minReviewers := max(e.cfg.MinReviewers, config.MinReviewersFloor)
	if len(reviewerIDs) < minReviewers {
		return nil, newError(KindInsufficientReviewers, "a round needs at least %d distinct reviewers, got %d", minReviewers, len(reviewerIDs))
	}

	unlock := e.lockSubmission(in.SubmissionID)
	defer unlock()

	var before *models.ReviewRound
	var sub *models.Submission
	now := e.now().UTC()
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		var err error
		sub, err = tx.GetSubmission(ctx, in.SubmissionID)
		if err != nil {
			return err
		}
		if sub.Status != models.StatusUnderReview {
			return newError(KindInvalidTransition, "rounds can only be opened while UNDER_REVIEW, submission %d is %s", sub.SubmissionID, sub.Status)
		}

		round, before, err = e.nextRound(ctx, tx, sub)
		if err != nil {
			return err
		}
		for _, reviewerID := range reviewerIDs {
			if err := e.checkReviewerEligible(ctx, tx, sub, reviewerID); err != nil {
				return err
			}
		}

		round.Status = models.RoundOpen
		round.OpenedBy = &actor.ID
		round.OpenedAt = &now
		if before == nil {
			round.CreatedAt = now
			if err := tx.CreateRound(ctx, round); err != nil {
				return err
			}
		} else if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}

		for _, reviewerID := range reviewerIDs {
			a, err := e.assign(ctx, tx, sub, round.RoundNo, reviewerID, actor, now)
			if err != nil {
				return err
			}
			round.Assignments = append(round.Assignments, *a)
		}

		sub.CurrentRound = round.RoundNo
		return tx.UpdateSubmission(ctx, sub, sub.Version)
	})
	if err != nil {
		return nil, err
	}

	var beforeState any
	if before != nil {
		beforeState = before
	}
	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionRoundOpened,
		ObjectType: ObjectRound,
		ObjectID:   round.RoundID,
		Before:     beforeState,
		After:      round,
		Metadata: map[string]any{
			"submission_id": sub.SubmissionID,
			"round_no":      round.RoundNo,
			"reviewer_ids":  reviewerIDs,
		},
	})
	for _, a := range round.Assignments {
		e.dispatch(a.ReviewerID, EventReviewRequested, reviewPayload(sub, &a))
	}
	return round, warn
}

// nextRound returns the round OpenRound should populate and, for an existing
// DRAFT round, a copy of it as the before-state.
func (e *WorkflowEngine) nextRound(ctx context.Context, tx WorkflowStore, sub *models.Submission) (*models.ReviewRound, *models.ReviewRound, error) {
	if sub.CurrentRound == 0 {
		return &models.ReviewRound{SubmissionID: sub.SubmissionID, RoundNo: 1, Status: models.RoundDraft}, nil, nil
	}
	current, err := tx.GetRound(ctx, sub.SubmissionID, sub.CurrentRound)
	if err != nil {
		return nil, nil, err
	}
	switch current.Status {
	case models.RoundDraft:
		before := *current
		return current, &before, nil
	case models.RoundOpen:
		return nil, nil, newError(KindRoundConflict, "round %d of submission %d is still open", current.RoundNo, sub.SubmissionID)
	}
	return nil, nil, newError(KindRoundConflict, "round %d of submission %d is decided and no new round was requested", current.RoundNo, sub.SubmissionID)
}

// checkReviewerEligible enforces the directory, conflict-of-interest and
// one-open-assignment rules for a prospective reviewer.
func (e *WorkflowEngine) checkReviewerEligible(ctx context.Context, tx WorkflowStore, sub *models.Submission, reviewerID uint) error {
	if reviewerID == sub.AuthorID {
		return newError(KindValidation, "the author of submission %d cannot review it", sub.SubmissionID)
	}
	profile, err := tx.GetReviewerProfile(ctx, reviewerID)
	if err != nil {
		if isNotFound(err) {
			return newError(KindValidation, "user %d is not in the reviewer directory", reviewerID)
		}
		return err
	}
	if !profile.Active {
		return newError(KindValidation, "reviewer %d is inactive", reviewerID)
	}
	open, err := tx.HasOpenAssignment(ctx, sub.SubmissionID, reviewerID)
	if err != nil {
		return err
	}
	if open {
		return newError(KindValidation, "reviewer %d already holds an open assignment on submission %d", reviewerID, sub.SubmissionID)
	}
	return nil
}

func (e *WorkflowEngine) assign(ctx context.Context, tx WorkflowStore, sub *models.Submission, roundNo int, reviewerID uint, actor models.Actor, now time.Time) (*models.ReviewAssignment, error) {
	a := &models.ReviewAssignment{
		SubmissionID: sub.SubmissionID,
		RoundNo:      roundNo,
		ReviewerID:   reviewerID,
		AssignedAt:   now,
	}
	if !actor.IsSystem() {
		assignedBy := actor.ID
		a.AssignedBy = &assignedBy
	}
	if e.cfg.ReviewDue > 0 {
		due := now.Add(e.cfg.ReviewDue)
		a.DueAt = &due
	}
	if err := tx.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	if err := e.workload.Acquire(ctx, tx, reviewerID); err != nil {
		return nil, err
	}
	return a, nil
}

// AddReviewer adds one more reviewer to the open round. The round stops
// being complete until the new reviewer reports.
func (e *WorkflowEngine) AddReviewer(ctx context.Context, actor models.Actor, submissionID uint, roundNo int, reviewerID uint) (a *models.ReviewAssignment, err error) {
	ctx, span := e.startSpan(ctx, "add_reviewer", actor,
		attribute.Int64("workflow.submission.id", int64(submissionID)),
		attribute.Int("workflow.round", roundNo),
	)
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "add reviewer", ObjectSubmission, submissionID, CapDecide); err != nil {
		return nil, err
	}

	unlock := e.lockSubmission(submissionID)
	defer unlock()

	var sub *models.Submission
	now := e.now().UTC()
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		var err error
		sub, err = tx.GetSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		round, err := tx.GetRound(ctx, submissionID, roundNo)
		if err != nil {
			return err
		}
		if round.Status != models.RoundOpen || round.RoundNo != sub.CurrentRound {
			return newError(KindRoundConflict, "round %d of submission %d is not open", roundNo, submissionID)
		}
		if err := e.checkReviewerEligible(ctx, tx, sub, reviewerID); err != nil {
			return err
		}
		a, err = e.assign(ctx, tx, sub, roundNo, reviewerID, actor, now)
		if err != nil {
			return err
		}
		return tx.UpdateSubmission(ctx, sub, sub.Version)
	})
	if err != nil {
		return nil, err
	}

	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionReviewerAdded,
		ObjectType: ObjectAssignment,
		ObjectID:   a.AssignmentID,
		After:      a,
		Metadata:   map[string]any{"submission_id": submissionID, "round_no": roundNo},
	})
	e.dispatch(reviewerID, EventReviewRequested, reviewPayload(sub, a))
	return a, warn
}

// SubmitReview stores the reviewer's report. The assignment is immutable
// afterwards; the reviewer's workload drops and completion average updates.
func (e *WorkflowEngine) SubmitReview(ctx context.Context, actor models.Actor, in SubmitReviewInput) (a *models.ReviewAssignment, err error) {
	ctx, span := e.startSpan(ctx, "submit_review", actor, attribute.Int64("workflow.assignment.id", int64(in.AssignmentID)))
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "submit review", ObjectAssignment, in.AssignmentID, CapReview); err != nil {
		return nil, err
	}
	rec, err := models.ParseRecommendation(string(in.Recommendation))
	if err != nil {
		return nil, wrapError(KindValidation, err, "invalid recommendation")
	}
	if in.Score != nil && (math.IsNaN(*in.Score) || math.IsInf(*in.Score, 0) || *in.Score < 0) {
		return nil, newError(KindValidation, "score must be a non-negative number")
	}
	if len(in.Form) > 0 && !json.Valid(in.Form) {
		return nil, newError(KindValidation, "review form must be valid JSON")
	}

	// resolve the owning submission before taking its lock
	peek, err := e.store.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return nil, err
	}
	unlock := e.lockSubmission(peek.SubmissionID)
	defer unlock()

	var before models.ReviewAssignment
	var sub *models.Submission
	var openedBy *uint
	now := e.now().UTC()
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		current, err := tx.GetAssignment(ctx, in.AssignmentID)
		if err != nil {
			return err
		}
		if current.ReviewerID != actor.ID {
			return newError(KindNotAssignedReviewer, "assignment %d belongs to another reviewer", current.AssignmentID)
		}
		if !current.Pending() {
			return newError(KindAlreadySubmitted, "assignment %d was already submitted", current.AssignmentID)
		}
		sub, err = tx.GetSubmission(ctx, current.SubmissionID)
		if err != nil {
			return err
		}
		round, err := tx.GetRound(ctx, current.SubmissionID, current.RoundNo)
		if err != nil {
			return err
		}
		openedBy = round.OpenedBy

		before = current.Clone()
		current.SubmittedAt = &now
		current.Recommendation = &rec
		current.Score = in.Score
		current.FormJSON = in.Form
		if err := tx.MarkAssignmentSubmitted(ctx, current); err != nil {
			return err
		}
		if err := e.workload.Release(ctx, tx, current.ReviewerID); err != nil {
			return err
		}
		profile, err := tx.LockReviewerProfile(ctx, current.ReviewerID)
		if err != nil {
			return err
		}
		profile.RecordCompletion(now.Sub(current.AssignedAt).Hours() / 24)
		if err := tx.UpdateReviewerStats(ctx, profile); err != nil {
			return err
		}
		a = current
		return tx.UpdateSubmission(ctx, sub, sub.Version)
	})
	if err != nil {
		return nil, err
	}

	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionReviewSubmitted,
		ObjectType: ObjectAssignment,
		ObjectID:   a.AssignmentID,
		Before:     before,
		After:      a.Clone(),
		Metadata:   map[string]any{"submission_id": a.SubmissionID, "round_no": a.RoundNo},
	})
	if openedBy != nil {
		e.dispatch(*openedBy, EventReviewSubmitted, reviewPayload(sub, a))
	}
	return a, warn
}

// IsRoundComplete reports whether every assignment of the round has been
// submitted. A round without assignments is never complete. The answer is
// always read from the store.
func (e *WorkflowEngine) IsRoundComplete(ctx context.Context, submissionID uint, roundNo int) (bool, error) {
	if _, err := e.store.GetRound(ctx, submissionID, roundNo); err != nil {
		return false, err
	}
	assignments, err := e.store.ListAssignments(ctx, submissionID, roundNo)
	if err != nil {
		return false, err
	}
	return roundComplete(assignments), nil
}

func roundComplete(assignments []models.ReviewAssignment) bool {
	if len(assignments) == 0 {
		return false
	}
	for _, a := range assignments {
		if a.Pending() {
			return false
		}
	}
	return true
}

// IsOverdue reports whether a pending assignment is past its due date.
func IsOverdue(a models.ReviewAssignment, now time.Time) bool {
	return a.IsOverdue(now)
}

// OverdueAssignments lists pending assignments past due at the engine's clock.
func (e *WorkflowEngine) OverdueAssignments(ctx context.Context) ([]models.ReviewAssignment, error) {
	return e.store.ListOverdueAssignments(ctx, e.now().UTC())
}

// RateReview records the editor's rating of a submitted review and folds it
// into the reviewer's rolling average.
func (e *WorkflowEngine) RateReview(ctx context.Context, actor models.Actor, assignmentID uint, rating int) (a *models.ReviewAssignment, err error) {
	ctx, span := e.startSpan(ctx, "rate_review", actor, attribute.Int64("workflow.assignment.id", int64(assignmentID)))
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "rate review", ObjectAssignment, assignmentID, CapDecide); err != nil {
		return nil, err
	}
	scale := e.cfg.Matching.RatingScale
	if rating < 1 || rating > scale {
		return nil, newError(KindValidation, "rating must be between 1 and %d", scale)
	}

	peek, err := e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	unlock := e.lockSubmission(peek.SubmissionID)
	defer unlock()

	var before models.ReviewAssignment
	now := e.now().UTC()
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		current, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if current.Pending() {
			return newError(KindValidation, "assignment %d has not been submitted", assignmentID)
		}
		if current.Rating != nil {
			return newError(KindValidation, "assignment %d is already rated", assignmentID)
		}
		before = current.Clone()
		current.Rating = &rating
		current.RatedAt = &now
		if err := tx.RateAssignment(ctx, current); err != nil {
			return err
		}
		profile, err := tx.LockReviewerProfile(ctx, current.ReviewerID)
		if err != nil {
			return err
		}
		profile.RecordRating(rating)
		if err := tx.UpdateReviewerStats(ctx, profile); err != nil {
			return err
		}
		a = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionReviewRated,
		ObjectType: ObjectAssignment,
		ObjectID:   a.AssignmentID,
		Before:     before,
		After:      a.Clone(),
	})
	return a, warn
}

func reviewPayload(sub *models.Submission, a *models.ReviewAssignment) map[string]string {
	payload := map[string]string{
		"submission_id": idString(sub.SubmissionID),
		"title":         sub.Title,
		"round":         idString(uint(a.RoundNo)),
		"assignment_id": idString(a.AssignmentID),
	}
	if a.DueAt != nil {
		payload["due_at"] = a.DueAt.Format("2006-01-02")
	}
	return payload
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
