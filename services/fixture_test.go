package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
)

var (
	author      = models.Actor{ID: 1, Role: models.RoleAuthor}
	otherAuthor = models.Actor{ID: 3, Role: models.RoleAuthor}
	editor      = models.Actor{ID: 2, Role: models.RoleEditor}
	layout      = models.Actor{ID: 5, Role: models.RoleLayoutEditor}
	admin       = models.Actor{ID: 99, Role: models.RoleAdmin}
	reviewerA   = models.Actor{ID: 10, Role: models.RoleReviewer}
	reviewerB   = models.Actor{ID: 11, Role: models.RoleReviewer}
	reviewerC   = models.Actor{ID: 12, Role: models.RoleReviewer}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentNotification struct {
	UserID    uint
	EventType string
	Payload   map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uint, eventType string, payload map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, EventType: eventType, Payload: payload})
	return nil
}

func (n *recordingNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, s := range n.sent {
		if s.EventType == eventType {
			total++
		}
	}
	return total
}

// flakySink fails the first `failures` appends, or every append when failures < 0.
type flakySink struct {
	AuditSink
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakySink) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	s.calls++
	fail := s.failures < 0 || s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("audit database unavailable")
	}
	return s.AuditSink.AppendAudit(ctx, rec)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memoryStore
	engine *WorkflowEngine
	notes  *recordingNotifier
	clock  *testClock
}

func testWorkflowConfig() config.WorkflowConfig {
	cfg := config.DefaultWorkflowConfig()
	cfg.Audit.InitialBackoff = time.Millisecond
	cfg.Audit.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithSink(t, nil)
}

// newFixtureWithSink builds an engine over a memoryStore. wrap, when set,
// decorates the audit sink.
func newFixtureWithSink(t *testing.T, wrap func(AuditSink) AuditSink) *fixture {
	t.Helper()
	store := newMemoryStore()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	notes := &recordingNotifier{}

	var sink AuditSink = store
	if wrap != nil {
		sink = wrap(store)
	}
	engine := NewWorkflowEngine(store, sink, notes, testWorkflowConfig(), WithClock(clock.Now))
	t.Cleanup(engine.Close)

	f := &fixture{t: t, ctx: context.Background(), store: store, engine: engine, notes: notes, clock: clock}
	for _, u := range []models.User{
		{UserID: author.ID, UserFname: "Ada", Email: "ada@example.org", RoleID: models.RoleAuthor},
		{UserID: otherAuthor.ID, UserFname: "Ben", Email: "ben@example.org", RoleID: models.RoleAuthor},
		{UserID: editor.ID, UserFname: "Eve", Email: "eve@example.org", RoleID: models.RoleEditor},
		{UserID: reviewerA.ID, UserFname: "Rae", Email: "rae@example.org", RoleID: models.RoleReviewer},
		{UserID: reviewerB.ID, UserFname: "Rob", Email: "rob@example.org", RoleID: models.RoleReviewer},
		{UserID: reviewerC.ID, UserFname: "Ria", Email: "ria@example.org", RoleID: models.RoleReviewer},
	} {
		store.PutUser(u)
	}
	for _, p := range []models.ReviewerProfile{
		{UserID: reviewerA.ID, Expertise: []string{"logistics"}, Active: true},
		{UserID: reviewerB.ID, Expertise: []string{"medicine"}, Active: true},
		{UserID: reviewerC.ID, Expertise: []string{"supply-chain"}, Active: true},
		{UserID: author.ID, Expertise: []string{"logistics"}, Active: true},
	} {
		if err := store.SaveReviewerProfile(f.ctx, &p); err != nil {
			t.Fatalf("seed reviewer profile: %v", err)
		}
	}
	return f
}

func (f *fixture) submit() *models.Submission {
	f.t.Helper()
	sub, err := f.engine.Submit(f.ctx, author, SubmitInput{
		Title:    "Routing under uncertainty",
		Keywords: []string{"Logistics", "supply-chain"},
	})
	if err != nil {
		f.t.Fatalf("submit: %v", err)
	}
	return sub
}

func (f *fixture) underReview() *models.Submission {
	f.t.Helper()
	sub := f.submit()
	sub, err := f.engine.Transition(f.ctx, editor, TransitionInput{
		SubmissionID:    sub.SubmissionID,
		Target:          models.StatusUnderReview,
		ExpectedVersion: sub.Version,
	})
	if err != nil {
		f.t.Fatalf("send to review: %v", err)
	}
	return sub
}

func (f *fixture) openRound(subID uint, reviewers ...models.Actor) *models.ReviewRound {
	f.t.Helper()
	ids := make([]uint, 0, len(reviewers))
	for _, r := range reviewers {
		ids = append(ids, r.ID)
	}
	round, err := f.engine.OpenRound(f.ctx, editor, OpenRoundInput{SubmissionID: subID, ReviewerIDs: ids})
	if err != nil {
		f.t.Fatalf("open round: %v", err)
	}
	return round
}

func (f *fixture) assignmentFor(round *models.ReviewRound, reviewer models.Actor) models.ReviewAssignment {
	f.t.Helper()
	for _, a := range round.Assignments {
		if a.ReviewerID == reviewer.ID {
			return a
		}
	}
	f.t.Fatalf("reviewer %d has no assignment in round %d", reviewer.ID, round.RoundNo)
	return models.ReviewAssignment{}
}

func (f *fixture) review(round *models.ReviewRound, reviewer models.Actor, rec models.Recommendation) *models.ReviewAssignment {
	f.t.Helper()
	a := f.assignmentFor(round, reviewer)
	out, err := f.engine.SubmitReview(f.ctx, reviewer, SubmitReviewInput{AssignmentID: a.AssignmentID, Recommendation: rec})
	if err != nil {
		f.t.Fatalf("submit review: %v", err)
	}
	return out
}

func (f *fixture) current(subID uint) *models.Submission {
	f.t.Helper()
	sub, err := f.store.GetSubmission(f.ctx, subID)
	if err != nil {
		f.t.Fatalf("load submission: %v", err)
	}
	return sub
}

func (f *fixture) workload(reviewer models.Actor) int {
	f.t.Helper()
	p, err := f.store.GetReviewerProfile(f.ctx, reviewer.ID)
	if err != nil {
		f.t.Fatalf("load profile: %v", err)
	}
	return p.OpenAssignments
}

func (f *fixture) audit(action string) []models.AuditRecord {
	f.t.Helper()
	rows, err := f.store.QueryAudit(f.ctx, AuditFilter{ActionPrefix: action, Limit: maxAuditQueryLimit})
	if err != nil {
		f.t.Fatalf("query audit: %v", err)
	}
	var out []models.AuditRecord
	for _, r := range rows {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

func expectKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	we, ok := AsWorkflowError(err)
	if !ok || we.Kind != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}
