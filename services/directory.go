package services

import (
	"context"

	"editorial-workflow-api/models"
	"editorial-workflow-api/utils"
)

// ReviewerProfileInput carries directory data supplied by the search
// pipeline. Active defaults to true for new profiles.
type ReviewerProfileInput struct {
	UserID      uint
	DisplayName string
	Expertise   []string
	Keywords    []string
	Active      *bool
}

// UpsertReviewerProfile creates or refreshes a reviewer's directory entry.
// Workload and history counters are never touched here.
func (e *WorkflowEngine) UpsertReviewerProfile(ctx context.Context, actor models.Actor, in ReviewerProfileInput) (profile *models.ReviewerProfile, err error) {
	ctx, span := e.startSpan(ctx, "upsert_reviewer", actor)
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "update reviewer profile", ObjectReviewer, in.UserID, CapAdmin); err != nil {
		return nil, err
	}
	if in.UserID == 0 {
		return nil, newError(KindValidation, "user id is required")
	}

	var before *models.ReviewerProfile
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		user, err := tx.GetUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		existing, err := tx.GetReviewerProfile(ctx, in.UserID)
		switch {
		case err == nil:
			before = existing
		case isNotFound(err):
		default:
			return err
		}

		next := &models.ReviewerProfile{UserID: in.UserID, Active: true}
		if before != nil {
			clone := before.Clone()
			next = &clone
		}
		next.DisplayName = utils.SanitizeInput(in.DisplayName)
		if next.DisplayName == "" {
			next.DisplayName = user.DisplayName()
		}
		next.Expertise = utils.NormalizeKeywords(in.Expertise)
		next.Keywords = utils.NormalizeKeywords(in.Keywords)
		if in.Active != nil {
			next.Active = *in.Active
		}
		if err := tx.SaveReviewerProfile(ctx, next); err != nil {
			return err
		}
		profile, err = tx.GetReviewerProfile(ctx, in.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var beforeState any
	if before != nil {
		beforeState = before
	}
	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionReviewerProfileUpdated,
		ObjectType: ObjectReviewer,
		ObjectID:   profile.UserID,
		Before:     beforeState,
		After:      profile,
	})
	return profile, warn
}

// ListReviewers returns the directory, optionally only active reviewers.
func (e *WorkflowEngine) ListReviewers(ctx context.Context, activeOnly bool) ([]models.ReviewerProfile, error) {
	return e.store.ListReviewerProfiles(ctx, activeOnly)
}

// SuggestReviewers ranks active reviewers for a submission. The author and
// reviewers already holding an open assignment on it are left out.
func (e *WorkflowEngine) SuggestReviewers(ctx context.Context, actor models.Actor, submissionID uint, limit int, minScore float64) (out []Suggestion, err error) {
	ctx, span := e.startSpan(ctx, "suggest_reviewers", actor)
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "suggest reviewers", ObjectSubmission, submissionID, CapDecide); err != nil {
		return nil, err
	}
	sub, err := e.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	profiles, err := e.store.ListReviewerProfiles(ctx, true)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	open, err := e.store.ListOpenAssignmentsForReviewers(ctx, ids)
	if err != nil {
		return nil, err
	}
	oldest := map[uint]*models.ReviewAssignment{}
	busyHere := map[uint]bool{}
	for i := range open {
		a := &open[i]
		if a.SubmissionID == submissionID {
			busyHere[a.ReviewerID] = true
		}
		if cur, ok := oldest[a.ReviewerID]; !ok || a.AssignedAt.Before(cur.AssignedAt) {
			oldest[a.ReviewerID] = a
		}
	}

	pool := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		if p.UserID == sub.AuthorID || busyHere[p.UserID] {
			continue
		}
		c := Candidate{
			ReviewerID:      p.UserID,
			Expertise:       p.Expertise,
			Keywords:        p.Keywords,
			OpenAssignments: p.OpenAssignments,
			AvgRating:       p.AvgRating,
			RatingCount:     p.RatingCount,
		}
		if a, ok := oldest[p.UserID]; ok {
			assignedAt := a.AssignedAt
			c.OldestOpenAssignedAt = &assignedAt
		}
		pool = append(pool, c)
	}

	target := MatchTarget{Keywords: sub.Keywords, Category: sub.CategoryName}
	return Suggest(target, pool, limit, minScore, e.cfg.Matching, e.now().UTC()), nil
}

// Workload reports a reviewer's open assignments. Reviewers may read their
// own; editors and admins may read anyone's.
func (e *WorkflowEngine) Workload(ctx context.Context, actor models.Actor, reviewerID uint) (WorkloadStatus, error) {
	if actor.ID != reviewerID || !CanReview(actor.Role) {
		if err := e.authorize(ctx, actor, "read workload", ObjectReviewer, reviewerID, CapDecide, CapAdmin); err != nil {
			return WorkloadStatus{}, err
		}
	}
	return e.workload.Current(ctx, reviewerID)
}
