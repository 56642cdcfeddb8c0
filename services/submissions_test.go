package services

import (
	"errors"
	"testing"

	"editorial-workflow-api/models"
)

func TestSubmitCreatesNewSubmission(t *testing.T) {
	f := newFixture(t)
	sub := f.submit()

	if sub.Status != models.StatusNew || sub.Version != 1 || sub.AuthorID != author.ID {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if len(sub.Keywords) != 2 || sub.Keywords[0] != "logistics" {
		t.Fatalf("keywords not normalised: %v", sub.Keywords)
	}
	created := f.audit(ActionSubmissionCreated)
	if len(created) != 1 || created[0].Before != nil || created[0].After == nil {
		t.Fatalf("expected one creation record with after-state only, got %+v", created)
	}
	f.engine.WaitNotifications()
	if f.notes.count(EventSubmissionReceived) != 1 {
		t.Fatalf("author was not notified")
	}
}

func TestSubmitRequiresSubmitCapability(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Submit(f.ctx, reviewerA, SubmitInput{Title: "x"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.engine.Submit(f.ctx, author, SubmitInput{Title: "   "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank title, got %v", err)
	}
}

func TestTransitionRejectsEdgeOutsideTable(t *testing.T) {
	f := newFixture(t)
	sub := f.submit()

	_, err := f.engine.Transition(f.ctx, editor, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusAccepted,
		ExpectedVersion: sub.Version,
	})
	expectKind(t, err, KindInvalidTransition)
	if got := f.current(sub.SubmissionID); got.Status != models.StatusNew || got.Version != 1 {
		t.Fatalf("submission changed after invalid transition: %+v", got)
	}
	if n := len(f.audit(ActionStatusChanged)); n != 0 {
		t.Fatalf("invalid transition was audited %d times", n)
	}
}

func TestTransitionOutOfReviewNeedsDecision(t *testing.T) {
	f := newFixture(t)
	sub := f.underReview()

	_, err := f.engine.Transition(f.ctx, admin, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusAccepted,
		ExpectedVersion: sub.Version,
	})
	expectKind(t, err, KindInvalidTransition)
}

func TestTransitionWithStaleVersion(t *testing.T) {
	f := newFixture(t)
	sub := f.submit()
	stale := sub.Version

	if _, err := f.engine.Transition(f.ctx, editor, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusUnderReview,
		ExpectedVersion: stale,
	}); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	_, err := f.engine.Transition(f.ctx, editor, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusDeskReject,
		ExpectedVersion: stale,
	})
	expectKind(t, err, KindConcurrentModification)
	if got := f.current(sub.SubmissionID); got.Status != models.StatusUnderReview {
		t.Fatalf("stale write was applied: %s", got.Status)
	}
}

func TestTransitionForbiddenIsAudited(t *testing.T) {
	f := newFixture(t)
	sub := f.submit()

	// reviewer fails the gate before anything is loaded
	_, err := f.engine.Transition(f.ctx, reviewerA, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusUnderReview,
		ExpectedVersion: sub.Version,
	})
	expectKind(t, err, KindForbidden)

	// the author may enter UNDER_REVIEW from REVISION, but not from NEW
	_, err = f.engine.Transition(f.ctx, author, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusUnderReview,
		ExpectedVersion: sub.Version,
	})
	expectKind(t, err, KindForbidden)

	denied := f.audit(ActionAccessDenied)
	if len(denied) != 2 {
		t.Fatalf("expected 2 access denied records, got %d", len(denied))
	}
	for _, rec := range denied {
		if rec.After != nil {
			t.Fatalf("access denied record carries after-state: %s", rec.After)
		}
	}
	if got := f.current(sub.SubmissionID); got.Status != models.StatusNew || got.Version != 1 {
		t.Fatalf("forbidden transition changed the submission: %+v", got)
	}
}

func TestTransitionProductionEdgesNeedLayout(t *testing.T) {
	f := newFixture(t)
	sub := f.underReview()
	round := f.openRound(sub.SubmissionID, reviewerA, reviewerB)
	f.review(round, reviewerA, models.RecommendAccept)
	f.review(round, reviewerB, models.RecommendAccept)
	res, err := f.engine.Decide(f.ctx, editor, DecideInput{SubmissionID: sub.SubmissionID, RoundNo: 1, Decision: models.DecisionAccept})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}

	_, err = f.engine.Transition(f.ctx, editor, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusInProduction,
		ExpectedVersion: res.Submission.Version,
	})
	expectKind(t, err, KindForbidden)

	inProd, err := f.engine.Transition(f.ctx, layout, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusInProduction,
		ExpectedVersion: res.Submission.Version,
	})
	if err != nil {
		t.Fatalf("layout transition: %v", err)
	}
	published, err := f.engine.Transition(f.ctx, layout, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusPublished,
		ExpectedVersion: inProd.Version,
		Reason:          "issue 4",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !published.Status.Terminal() {
		t.Fatalf("expected terminal status, got %s", published.Status)
	}

	for _, target := range models.AllStatuses {
		_, err := f.engine.Transition(f.ctx, admin, TransitionInput{
			SubmissionID:    sub.SubmissionID,
			Target:          target,
			ExpectedVersion: published.Version,
		})
		expectKind(t, err, KindInvalidTransition)
	}
}

func TestRevisionResubmissionIsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	sub := f.underReview()
	round := f.openRound(sub.SubmissionID, reviewerA, reviewerB)
	f.review(round, reviewerA, models.RecommendMinor)
	f.review(round, reviewerB, models.RecommendAccept)
	res, err := f.engine.Decide(f.ctx, editor, DecideInput{SubmissionID: sub.SubmissionID, RoundNo: 1, Decision: models.DecisionMinor})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}

	_, err = f.engine.Transition(f.ctx, otherAuthor, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusUnderReview,
		ExpectedVersion: res.Submission.Version,
	})
	expectKind(t, err, KindForbidden)

	back, err := f.engine.Transition(f.ctx, author, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusUnderReview,
		ExpectedVersion: res.Submission.Version,
		Reason:          "revised manuscript uploaded",
	})
	if err != nil {
		t.Fatalf("author resubmission: %v", err)
	}
	if back.Status != models.StatusUnderReview || back.CurrentRound != 2 {
		t.Fatalf("unexpected state after resubmission: %+v", back)
	}
}

func TestTransitionChecksPermissionBeforeTargetAndVersion(t *testing.T) {
	f := newFixture(t)
	sub := f.underReview()
	round := f.openRound(sub.SubmissionID, reviewerA, reviewerB)
	f.review(round, reviewerA, models.RecommendMinor)
	f.review(round, reviewerB, models.RecommendMinor)
	res, err := f.engine.Decide(f.ctx, editor, DecideInput{SubmissionID: sub.SubmissionID, RoundNo: 1, Decision: models.DecisionMinor})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	version := res.Submission.Version

	for _, target := range []models.SubmissionStatus{"LIMBO", models.StatusNew} {
		_, err := f.engine.Transition(f.ctx, reviewerA, TransitionInput{
			SubmissionID: sub.SubmissionID, Target: target, ExpectedVersion: version,
		})
		expectKind(t, err, KindForbidden)
	}
	_, err = f.engine.Transition(f.ctx, editor, TransitionInput{
		SubmissionID: sub.SubmissionID, Target: "LIMBO", ExpectedVersion: version,
	})
	expectKind(t, err, KindInvalidTransition)

	// a stranger with a stale version learns nothing about the current one
	_, err = f.engine.Transition(f.ctx, otherAuthor, TransitionInput{
		SubmissionID: sub.SubmissionID, Target: models.StatusUnderReview, ExpectedVersion: version - 1,
	})
	expectKind(t, err, KindForbidden)

	if denied := f.audit(ActionAccessDenied); len(denied) != 3 {
		t.Fatalf("expected 3 access denied records, got %d", len(denied))
	}
	if got := f.current(sub.SubmissionID); got.Status != models.StatusRevision || got.Version != version {
		t.Fatalf("denied transitions changed the submission: %+v", got)
	}
}

func TestGetSubmissionVisibility(t *testing.T) {
	f := newFixture(t)
	sub := f.underReview()
	f.openRound(sub.SubmissionID, reviewerA, reviewerB)

	got, err := f.engine.GetSubmission(f.ctx, reviewerA, sub.SubmissionID)
	if err != nil {
		t.Fatalf("assigned reviewer should see submission: %v", err)
	}
	if len(got.Rounds) != 1 || len(got.Rounds[0].Assignments) != 2 {
		t.Fatalf("rounds not loaded: %+v", got.Rounds)
	}
	if _, err := f.engine.GetSubmission(f.ctx, reviewerC, sub.SubmissionID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unassigned reviewer should be forbidden, got %v", err)
	}
	if _, err := f.engine.GetSubmission(f.ctx, otherAuthor, sub.SubmissionID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other author should be forbidden, got %v", err)
	}
}
