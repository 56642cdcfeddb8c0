package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"editorial-workflow-api/models"
)

// memoryStore is an in-process WorkflowStore and AuditSink for engine tests.
// Transactions are serialised and roll back by restoring a snapshot taken on
// entry.
type memoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memoryData
}

type memoryData struct {
	submissions map[uint]models.Submission
	rounds      map[uint]models.ReviewRound
	assignments map[uint]models.ReviewAssignment
	decisions   map[uint]models.EditorialDecision
	profiles    map[uint]models.ReviewerProfile
	attachments map[uint]models.SubmissionAttachment
	users       map[uint]models.User
	audit       []models.AuditRecord
	nextID      uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: memoryData{
		submissions: map[uint]models.Submission{},
		rounds:      map[uint]models.ReviewRound{},
		assignments: map[uint]models.ReviewAssignment{},
		decisions:   map[uint]models.EditorialDecision{},
		profiles:    map[uint]models.ReviewerProfile{},
		attachments: map[uint]models.SubmissionAttachment{},
		users:       map[uint]models.User{},
	}}
}

func (d memoryData) clone() memoryData {
	out := memoryData{
		submissions: make(map[uint]models.Submission, len(d.submissions)),
		rounds:      make(map[uint]models.ReviewRound, len(d.rounds)),
		assignments: make(map[uint]models.ReviewAssignment, len(d.assignments)),
		decisions:   make(map[uint]models.EditorialDecision, len(d.decisions)),
		profiles:    make(map[uint]models.ReviewerProfile, len(d.profiles)),
		attachments: make(map[uint]models.SubmissionAttachment, len(d.attachments)),
		users:       make(map[uint]models.User, len(d.users)),
		audit:       append([]models.AuditRecord(nil), d.audit...),
		nextID:      d.nextID,
	}
	for k, v := range d.submissions {
		out.submissions[k] = v.Clone()
	}
	for k, v := range d.rounds {
		out.rounds[k] = v
	}
	for k, v := range d.assignments {
		out.assignments[k] = v.Clone()
	}
	for k, v := range d.decisions {
		out.decisions[k] = v
	}
	for k, v := range d.profiles {
		out.profiles[k] = v.Clone()
	}
	for k, v := range d.attachments {
		out.attachments[k] = v
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	return out
}

func (s *memoryStore) id() uint {
	s.data.nextID++
	return s.data.nextID
}

func (s *memoryStore) InTx(ctx context.Context, fn func(tx WorkflowStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	err := fn(s)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		// audit records are written outside business transactions and survive rollback
		snapshot.audit = s.data.audit
		s.data = snapshot
		s.mu.Unlock()
	}
	return err
}

// PutUser seeds a user row, as the identity service would.
func (s *memoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.UserID] = u
}

func (s *memoryStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.SubmissionID = s.id()
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = sub.CreatedAt
	s.data.submissions[sub.SubmissionID] = sub.Clone()
	return nil
}

func (s *memoryStore) GetSubmission(ctx context.Context, submissionID uint) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.data.submissions[submissionID]
	if !ok {
		return nil, newError(KindNotFound, "submission %d not found", submissionID)
	}
	out := sub.Clone()
	return &out, nil
}

func (s *memoryStore) UpdateSubmission(ctx context.Context, sub *models.Submission, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.submissions[sub.SubmissionID]
	if !ok {
		return newError(KindNotFound, "submission %d not found", sub.SubmissionID)
	}
	if stored.Version != expectedVersion {
		return newError(KindConcurrentModification, "submission %d changed since version %d", sub.SubmissionID, expectedVersion)
	}
	stored.Status = sub.Status
	stored.CurrentRound = sub.CurrentRound
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now()
	s.data.submissions[sub.SubmissionID] = stored
	sub.Version = stored.Version
	sub.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *memoryStore) CreateRound(ctx context.Context, round *models.ReviewRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.data.rounds {
		if r.SubmissionID == round.SubmissionID && r.RoundNo == round.RoundNo {
			return newError(KindRoundConflict, "round %d already exists for submission %d", round.RoundNo, round.SubmissionID)
		}
	}
	round.RoundID = s.id()
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now()
	}
	stored := *round
	stored.Assignments = nil
	s.data.rounds[round.RoundID] = stored
	return nil
}

func (s *memoryStore) GetRound(ctx context.Context, submissionID uint, roundNo int) (*models.ReviewRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.data.rounds {
		if r.SubmissionID == submissionID && r.RoundNo == roundNo {
			out := r
			return &out, nil
		}
	}
	return nil, newError(KindNotFound, "round %d of submission %d not found", roundNo, submissionID)
}

func (s *memoryStore) ListRounds(ctx context.Context, submissionID uint) ([]models.ReviewRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReviewRound
	for _, r := range s.data.rounds {
		if r.SubmissionID == submissionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNo < out[j].RoundNo })
	return out, nil
}

func (s *memoryStore) UpdateRound(ctx context.Context, round *models.ReviewRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.rounds[round.RoundID]
	if !ok {
		return newError(KindNotFound, "round %d not found", round.RoundID)
	}
	stored.Status = round.Status
	stored.OpenedBy = round.OpenedBy
	stored.OpenedAt = round.OpenedAt
	stored.DecidedAt = round.DecidedAt
	s.data.rounds[round.RoundID] = stored
	return nil
}

func (s *memoryStore) CreateAssignment(ctx context.Context, a *models.ReviewAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.AssignmentID = s.id()
	s.data.assignments[a.AssignmentID] = a.Clone()
	return nil
}

func (s *memoryStore) GetAssignment(ctx context.Context, assignmentID uint) (*models.ReviewAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data.assignments[assignmentID]
	if !ok {
		return nil, newError(KindNotFound, "assignment %d not found", assignmentID)
	}
	out := a.Clone()
	return &out, nil
}

func (s *memoryStore) ListAssignments(ctx context.Context, submissionID uint, roundNo int) ([]models.ReviewAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReviewAssignment
	for _, a := range s.data.assignments {
		if a.SubmissionID != submissionID {
			continue
		}
		if roundNo > 0 && a.RoundNo != roundNo {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNo != out[j].RoundNo {
			return out[i].RoundNo < out[j].RoundNo
		}
		return out[i].AssignmentID < out[j].AssignmentID
	})
	return out, nil
}

func (s *memoryStore) MarkAssignmentSubmitted(ctx context.Context, a *models.ReviewAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.assignments[a.AssignmentID]
	if !ok {
		return newError(KindNotFound, "assignment %d not found", a.AssignmentID)
	}
	if stored.SubmittedAt != nil {
		return newError(KindAlreadySubmitted, "assignment %d was already submitted", a.AssignmentID)
	}
	updated := a.Clone()
	stored.SubmittedAt = updated.SubmittedAt
	stored.Recommendation = updated.Recommendation
	stored.Score = updated.Score
	stored.FormJSON = updated.FormJSON
	s.data.assignments[a.AssignmentID] = stored
	return nil
}

func (s *memoryStore) RateAssignment(ctx context.Context, a *models.ReviewAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.assignments[a.AssignmentID]
	if !ok || stored.SubmittedAt == nil || stored.Rating != nil {
		return newError(KindValidation, "assignment %d cannot be rated", a.AssignmentID)
	}
	updated := a.Clone()
	stored.Rating = updated.Rating
	stored.RatedAt = updated.RatedAt
	s.data.assignments[a.AssignmentID] = stored
	return nil
}

func (s *memoryStore) HasOpenAssignment(ctx context.Context, submissionID, reviewerID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.data.assignments {
		if a.SubmissionID == submissionID && a.ReviewerID == reviewerID && a.SubmittedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) ListOpenAssignmentsForReviewers(ctx context.Context, reviewerIDs []uint) ([]models.ReviewAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[uint]bool, len(reviewerIDs))
	for _, id := range reviewerIDs {
		wanted[id] = true
	}
	var out []models.ReviewAssignment
	for _, a := range s.data.assignments {
		if wanted[a.ReviewerID] && a.SubmittedAt == nil {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].AssignmentID < out[j].AssignmentID
	})
	return out, nil
}

func (s *memoryStore) ListOverdueAssignments(ctx context.Context, now time.Time) ([]models.ReviewAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReviewAssignment
	for _, a := range s.data.assignments {
		if a.IsOverdue(now) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(*out[j].DueAt) {
			return out[i].DueAt.Before(*out[j].DueAt)
		}
		return out[i].AssignmentID < out[j].AssignmentID
	})
	return out, nil
}

func (s *memoryStore) CreateDecision(ctx context.Context, d *models.EditorialDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.decisions {
		if existing.SubmissionID == d.SubmissionID && existing.RoundNo == d.RoundNo {
			return newError(KindDuplicateDecision, "round %d of submission %d already has a decision", d.RoundNo, d.SubmissionID)
		}
	}
	d.DecisionID = s.id()
	s.data.decisions[d.DecisionID] = *d
	return nil
}

func (s *memoryStore) GetDecision(ctx context.Context, submissionID uint, roundNo int) (*models.EditorialDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.data.decisions {
		if d.SubmissionID == submissionID && d.RoundNo == roundNo {
			out := d
			return &out, nil
		}
	}
	return nil, newError(KindNotFound, "no decision for round %d of submission %d", roundNo, submissionID)
}

func (s *memoryStore) GetReviewerProfile(ctx context.Context, userID uint) (*models.ReviewerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.profiles[userID]
	if !ok {
		return nil, newError(KindNotFound, "reviewer %d not found", userID)
	}
	out := p.Clone()
	return &out, nil
}

// LockReviewerProfile is a plain read: memoryStore transactions are already serialised.
func (s *memoryStore) LockReviewerProfile(ctx context.Context, userID uint) (*models.ReviewerProfile, error) {
	return s.GetReviewerProfile(ctx, userID)
}

func (s *memoryStore) ListReviewerProfiles(ctx context.Context, activeOnly bool) ([]models.ReviewerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReviewerProfile
	for _, p := range s.data.profiles {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memoryStore) SaveReviewerProfile(ctx context.Context, p *models.ReviewerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	stored, ok := s.data.profiles[p.UserID]
	if !ok {
		s.data.profiles[p.UserID] = p.Clone()
		return nil
	}
	updated := p.Clone()
	stored.DisplayName = updated.DisplayName
	stored.Expertise = updated.Expertise
	stored.Keywords = updated.Keywords
	stored.Active = updated.Active
	stored.UpdatedAt = updated.UpdatedAt
	s.data.profiles[p.UserID] = stored
	return nil
}

func (s *memoryStore) UpdateReviewerStats(ctx context.Context, p *models.ReviewerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.profiles[p.UserID]
	if !ok {
		return newError(KindNotFound, "reviewer %d not found", p.UserID)
	}
	stored.CompletedReviews = p.CompletedReviews
	stored.AvgCompletionDays = p.AvgCompletionDays
	stored.AvgRating = p.AvgRating
	stored.RatingCount = p.RatingCount
	s.data.profiles[p.UserID] = stored
	return nil
}

func (s *memoryStore) AdjustWorkload(ctx context.Context, reviewerID uint, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.profiles[reviewerID]
	if !ok {
		return newError(KindNotFound, "reviewer %d not found", reviewerID)
	}
	stored.OpenAssignments += delta
	if stored.OpenAssignments < 0 {
		stored.OpenAssignments = 0
	}
	s.data.profiles[reviewerID] = stored
	return nil
}

func (s *memoryStore) CreateAttachment(ctx context.Context, att *models.SubmissionAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	att.AttachmentID = s.id()
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now()
	}
	s.data.attachments[att.AttachmentID] = *att
	return nil
}

func (s *memoryStore) ListAttachments(ctx context.Context, submissionID uint) ([]models.SubmissionAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubmissionAttachment
	for _, att := range s.data.attachments {
		if att.SubmissionID == submissionID {
			out = append(out, att)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttachmentID < out[j].AttachmentID })
	return out, nil
}

func (s *memoryStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[userID]
	if !ok {
		return nil, newError(KindNotFound, "user %d not found", userID)
	}
	return &u, nil
}

func (s *memoryStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.AuditID = uint(len(s.data.audit) + 1)
	s.data.audit = append(s.data.audit, *rec)
	return nil
}

func (s *memoryStore) QueryAudit(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := filter.effectiveLimit()
	var out []models.AuditRecord
	for _, rec := range s.data.audit {
		if filter.ActorID != nil && (rec.ActorID == nil || *rec.ActorID != *filter.ActorID) {
			continue
		}
		if filter.ActionPrefix != "" && !strings.HasPrefix(rec.Action, filter.ActionPrefix) {
			continue
		}
		if filter.ObjectType != "" && rec.ObjectType != filter.ObjectType {
			continue
		}
		if filter.ObjectID != "" && rec.ObjectID != filter.ObjectID {
			continue
		}
		if filter.From != nil && rec.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ WorkflowStore = (*memoryStore)(nil)
var _ AuditSink = (*memoryStore)(nil)
