package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"editorial-workflow-api/models"
)

type DecideInput struct {
	SubmissionID uint
	RoundNo      int
	Decision     models.Decision
	Note         string
}

// DecisionResult is the outcome of a successful Decide. NextRound is set when
// the decision requested a revision.
type DecisionResult struct {
	Decision   *models.EditorialDecision `json:"decision"`
	Submission *models.Submission        `json:"submission"`
	NextRound  *models.ReviewRound       `json:"next_round,omitempty"`
}

// Decide records the editor's ruling on a complete round and drives the
// submission to ACCEPTED, REJECTED or REVISION. A revision immediately
// creates the next round in DRAFT with no assignments.
func (e *WorkflowEngine) Decide(ctx context.Context, actor models.Actor, in DecideInput) (res *DecisionResult, err error) {
	ctx, span := e.startSpan(ctx, "decide", actor,
		attribute.Int64("workflow.submission.id", int64(in.SubmissionID)),
		attribute.Int("workflow.round", in.RoundNo),
		attribute.String("workflow.decision", string(in.Decision)),
	)
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "decide", ObjectSubmission, in.SubmissionID, CapDecide); err != nil {
		return nil, err
	}
	decision, err := models.ParseDecision(string(in.Decision))
	if err != nil {
		return nil, wrapError(KindValidation, err, "invalid decision")
	}
	target, err := decision.TargetStatus()
	if err != nil {
		return nil, wrapError(KindValidation, err, "invalid decision")
	}

	unlock := e.lockSubmission(in.SubmissionID)
	defer unlock()

	var before models.Submission
	now := e.now().UTC()
	res = &DecisionResult{}
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		sub, err := tx.GetSubmission(ctx, in.SubmissionID)
		if err != nil {
			return err
		}
		if _, err := tx.GetDecision(ctx, in.SubmissionID, in.RoundNo); err == nil {
			return newError(KindDuplicateDecision, "round %d of submission %d already has a decision", in.RoundNo, in.SubmissionID)
		} else if !isNotFound(err) {
			return err
		}

		round, err := tx.GetRound(ctx, in.SubmissionID, in.RoundNo)
		if err != nil {
			return err
		}
		assignments, err := tx.ListAssignments(ctx, in.SubmissionID, in.RoundNo)
		if err != nil {
			return err
		}
		if !roundComplete(assignments) {
			return newError(KindRoundIncomplete, "round %d of submission %d still has pending reviews", in.RoundNo, in.SubmissionID)
		}
		if round.Status != models.RoundOpen || round.RoundNo != sub.CurrentRound {
			return newError(KindInvalidTransition, "round %d is not the open round of submission %d", in.RoundNo, in.SubmissionID)
		}

		before = sub.Clone()
		if err := stepStatus(sub, target); err != nil {
			return err
		}

		record := &models.EditorialDecision{
			SubmissionID: in.SubmissionID,
			RoundNo:      in.RoundNo,
			EditorID:     actor.ID,
			Decision:     decision,
			DecidedAt:    now,
		}
		if note := strings.TrimSpace(in.Note); note != "" {
			record.Note = &note
		}
		if err := tx.CreateDecision(ctx, record); err != nil {
			return err
		}

		round.Status = models.RoundDecided
		round.DecidedAt = &now
		if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}

		if decision.RequestsRevision() {
			next := &models.ReviewRound{
				SubmissionID: in.SubmissionID,
				RoundNo:      in.RoundNo + 1,
				Status:       models.RoundDraft,
				CreatedAt:    now,
			}
			if err := tx.CreateRound(ctx, next); err != nil {
				return err
			}
			sub.CurrentRound = next.RoundNo
			res.NextRound = next
		}
		if err := tx.UpdateSubmission(ctx, sub, before.Version); err != nil {
			return err
		}
		res.Decision = record
		res.Submission = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"decision":    string(decision),
		"decision_id": res.Decision.DecisionID,
		"round_no":    in.RoundNo,
		"from":        string(before.Status),
		"to":          string(res.Submission.Status),
	}
	if res.NextRound != nil {
		meta["next_round"] = res.NextRound.RoundNo
	}
	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionDecisionRecorded,
		ObjectType: ObjectSubmission,
		ObjectID:   in.SubmissionID,
		Before:     before,
		After:      res.Submission.Clone(),
		Metadata:   meta,
	})

	payload := map[string]string{
		"submission_id": idString(in.SubmissionID),
		"title":         res.Submission.Title,
		"decision":      string(decision),
	}
	if res.Decision.Note != nil {
		payload["note"] = *res.Decision.Note
	}
	e.dispatch(res.Submission.AuthorID, EventDecisionRecorded, payload)
	return res, warn
}
