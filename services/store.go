package services

import (
	"context"
	"time"

	"editorial-workflow-api/models"
)

// WorkflowStore is the persistence port of the engine. Implementations must
// make InTx all-or-nothing and must fail UpdateSubmission with
// ErrConcurrentModification when the stored version differs from expected.
type WorkflowStore interface {
	InTx(ctx context.Context, fn func(tx WorkflowStore) error) error

	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, submissionID uint) (*models.Submission, error)
	// UpdateSubmission persists status and current round, bumping the version
	// from expectedVersion to expectedVersion+1.
	UpdateSubmission(ctx context.Context, sub *models.Submission, expectedVersion int) error

	CreateRound(ctx context.Context, round *models.ReviewRound) error
	GetRound(ctx context.Context, submissionID uint, roundNo int) (*models.ReviewRound, error)
	ListRounds(ctx context.Context, submissionID uint) ([]models.ReviewRound, error)
	UpdateRound(ctx context.Context, round *models.ReviewRound) error

	CreateAssignment(ctx context.Context, a *models.ReviewAssignment) error
	GetAssignment(ctx context.Context, assignmentID uint) (*models.ReviewAssignment, error)
	ListAssignments(ctx context.Context, submissionID uint, roundNo int) ([]models.ReviewAssignment, error)
	// MarkAssignmentSubmitted stores the report only while submitted_at is
	// still null and fails with ErrAlreadySubmitted otherwise.
	MarkAssignmentSubmitted(ctx context.Context, a *models.ReviewAssignment) error
	RateAssignment(ctx context.Context, a *models.ReviewAssignment) error
	HasOpenAssignment(ctx context.Context, submissionID, reviewerID uint) (bool, error)
	ListOpenAssignmentsForReviewers(ctx context.Context, reviewerIDs []uint) ([]models.ReviewAssignment, error)
	ListOverdueAssignments(ctx context.Context, now time.Time) ([]models.ReviewAssignment, error)

	CreateDecision(ctx context.Context, d *models.EditorialDecision) error
	GetDecision(ctx context.Context, submissionID uint, roundNo int) (*models.EditorialDecision, error)

	GetReviewerProfile(ctx context.Context, userID uint) (*models.ReviewerProfile, error)
	// LockReviewerProfile reads the profile and holds it until the surrounding
	// transaction ends.
	LockReviewerProfile(ctx context.Context, userID uint) (*models.ReviewerProfile, error)
	ListReviewerProfiles(ctx context.Context, activeOnly bool) ([]models.ReviewerProfile, error)
	SaveReviewerProfile(ctx context.Context, p *models.ReviewerProfile) error
	UpdateReviewerStats(ctx context.Context, p *models.ReviewerProfile) error
	AdjustWorkload(ctx context.Context, reviewerID uint, delta int) error

	CreateAttachment(ctx context.Context, att *models.SubmissionAttachment) error
	ListAttachments(ctx context.Context, submissionID uint) ([]models.SubmissionAttachment, error)

	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

// AuditFilter narrows an audit query. Zero values are ignored.
type AuditFilter struct {
	ActorID      *uint
	ActionPrefix string
	ObjectType   string
	ObjectID     string
	From         *time.Time
	To           *time.Time
	Limit        int
}

// AuditSink is the append-only destination of audit records.
type AuditSink interface {
	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error)
}

const defaultAuditQueryLimit = 100
const maxAuditQueryLimit = 1000

func (f AuditFilter) effectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return defaultAuditQueryLimit
	case f.Limit > maxAuditQueryLimit:
		return maxAuditQueryLimit
	}
	return f.Limit
}
