package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements WorkflowStore and AuditSink on MySQL through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		db = config.DB
	}
	return &GormStore{db: db}
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx WorkflowStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func (s *GormStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(sub).Error; err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *GormStore) GetSubmission(ctx context.Context, submissionID uint) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&sub).Error; err != nil {
		return nil, notFoundOr(err, "submission %d not found", submissionID)
	}
	return &sub, nil
}

func (s *GormStore) UpdateSubmission(ctx context.Context, sub *models.Submission, expectedVersion int) error {
	now := time.Now()
	// gorm writes the map back into the model, so update a copy and only
	// publish the new version once the row has actually changed.
	row := *sub
	res := s.db.WithContext(ctx).Model(&row).
		Where("version = ?", expectedVersion).
		Updates(map[string]interface{}{
			"status":        sub.Status,
			"current_round": sub.CurrentRound,
			"version":       expectedVersion + 1,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("update submission %d: %w", sub.SubmissionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindConcurrentModification, "submission %d changed since version %d", sub.SubmissionID, expectedVersion)
	}
	sub.Version = expectedVersion + 1
	sub.UpdatedAt = now
	return nil
}

func (s *GormStore) CreateRound(ctx context.Context, round *models.ReviewRound) error {
	if err := s.db.WithContext(ctx).Create(round).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return newError(KindRoundConflict, "round %d already exists for submission %d", round.RoundNo, round.SubmissionID)
		}
		return fmt.Errorf("create round: %w", err)
	}
	return nil
}

func (s *GormStore) GetRound(ctx context.Context, submissionID uint, roundNo int) (*models.ReviewRound, error) {
	var round models.ReviewRound
	err := s.db.WithContext(ctx).
		Where("submission_id = ? AND round_no = ?", submissionID, roundNo).
		First(&round).Error
	if err != nil {
		return nil, notFoundOr(err, "round %d of submission %d not found", roundNo, submissionID)
	}
	return &round, nil
}

func (s *GormStore) ListRounds(ctx context.Context, submissionID uint) ([]models.ReviewRound, error) {
	var rounds []models.ReviewRound
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("round_no ASC").
		Find(&rounds).Error; err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return rounds, nil
}

func (s *GormStore) UpdateRound(ctx context.Context, round *models.ReviewRound) error {
	res := s.db.WithContext(ctx).Model(&models.ReviewRound{}).
		Where("round_id = ?", round.RoundID).
		Updates(map[string]interface{}{
			"status":     round.Status,
			"opened_by":  round.OpenedBy,
			"opened_at":  round.OpenedAt,
			"decided_at": round.DecidedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update round %d: %w", round.RoundID, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindNotFound, "round %d not found", round.RoundID)
	}
	return nil
}

func (s *GormStore) CreateAssignment(ctx context.Context, a *models.ReviewAssignment) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (s *GormStore) GetAssignment(ctx context.Context, assignmentID uint) (*models.ReviewAssignment, error) {
	var a models.ReviewAssignment
	if err := s.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&a).Error; err != nil {
		return nil, notFoundOr(err, "assignment %d not found", assignmentID)
	}
	return &a, nil
}

func (s *GormStore) ListAssignments(ctx context.Context, submissionID uint, roundNo int) ([]models.ReviewAssignment, error) {
	q := s.db.WithContext(ctx).Where("submission_id = ?", submissionID)
	if roundNo > 0 {
		q = q.Where("round_no = ?", roundNo)
	}
	var rows []models.ReviewAssignment
	if err := q.Order("round_no ASC, assignment_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return rows, nil
}

func (s *GormStore) MarkAssignmentSubmitted(ctx context.Context, a *models.ReviewAssignment) error {
	res := s.db.WithContext(ctx).Model(&models.ReviewAssignment{}).
		Where("assignment_id = ? AND submitted_at IS NULL", a.AssignmentID).
		Updates(map[string]interface{}{
			"submitted_at":   a.SubmittedAt,
			"recommendation": a.Recommendation,
			"score":          a.Score,
			"form_json":      a.FormJSON,
		})
	if res.Error != nil {
		return fmt.Errorf("submit assignment %d: %w", a.AssignmentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindAlreadySubmitted, "assignment %d was already submitted", a.AssignmentID)
	}
	return nil
}

func (s *GormStore) RateAssignment(ctx context.Context, a *models.ReviewAssignment) error {
	res := s.db.WithContext(ctx).Model(&models.ReviewAssignment{}).
		Where("assignment_id = ? AND submitted_at IS NOT NULL AND rating IS NULL", a.AssignmentID).
		Updates(map[string]interface{}{
			"rating":   a.Rating,
			"rated_at": a.RatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("rate assignment %d: %w", a.AssignmentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindValidation, "assignment %d cannot be rated", a.AssignmentID)
	}
	return nil
}

func (s *GormStore) HasOpenAssignment(ctx context.Context, submissionID, reviewerID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ReviewAssignment{}).
		Where("submission_id = ? AND reviewer_id = ? AND submitted_at IS NULL", submissionID, reviewerID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count open assignments: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) ListOpenAssignmentsForReviewers(ctx context.Context, reviewerIDs []uint) ([]models.ReviewAssignment, error) {
	if len(reviewerIDs) == 0 {
		return nil, nil
	}
	var rows []models.ReviewAssignment
	if err := s.db.WithContext(ctx).
		Where("reviewer_id IN ? AND submitted_at IS NULL", reviewerIDs).
		Order("assigned_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list open assignments: %w", err)
	}
	return rows, nil
}

func (s *GormStore) ListOverdueAssignments(ctx context.Context, now time.Time) ([]models.ReviewAssignment, error) {
	var rows []models.ReviewAssignment
	if err := s.db.WithContext(ctx).
		Where("submitted_at IS NULL AND due_at IS NOT NULL AND due_at < ?", now).
		Order("due_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list overdue assignments: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CreateDecision(ctx context.Context, d *models.EditorialDecision) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return newError(KindDuplicateDecision, "round %d of submission %d already has a decision", d.RoundNo, d.SubmissionID)
		}
		return fmt.Errorf("create decision: %w", err)
	}
	return nil
}

func (s *GormStore) GetDecision(ctx context.Context, submissionID uint, roundNo int) (*models.EditorialDecision, error) {
	var d models.EditorialDecision
	err := s.db.WithContext(ctx).
		Where("submission_id = ? AND round_no = ?", submissionID, roundNo).
		First(&d).Error
	if err != nil {
		return nil, notFoundOr(err, "no decision for round %d of submission %d", roundNo, submissionID)
	}
	return &d, nil
}

func (s *GormStore) GetReviewerProfile(ctx context.Context, userID uint) (*models.ReviewerProfile, error) {
	var p models.ReviewerProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFoundOr(err, "reviewer %d not found", userID)
	}
	return &p, nil
}

func (s *GormStore) LockReviewerProfile(ctx context.Context, userID uint) (*models.ReviewerProfile, error) {
	var p models.ReviewerProfile
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&p).Error; err != nil {
		return nil, notFoundOr(err, "reviewer %d not found", userID)
	}
	return &p, nil
}

func (s *GormStore) ListReviewerProfiles(ctx context.Context, activeOnly bool) ([]models.ReviewerProfile, error) {
	q := s.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []models.ReviewerProfile
	if err := q.Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reviewer profiles: %w", err)
	}
	return rows, nil
}

// SaveReviewerProfile upserts the directory fields only; workload and rolling
// statistics are owned by AdjustWorkload and UpdateReviewerStats.
func (s *GormStore) SaveReviewerProfile(ctx context.Context, p *models.ReviewerProfile) error {
	p.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "expertise", "keywords", "active", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("save reviewer profile %d: %w", p.UserID, err)
	}
	return nil
}

func (s *GormStore) UpdateReviewerStats(ctx context.Context, p *models.ReviewerProfile) error {
	res := s.db.WithContext(ctx).Model(&models.ReviewerProfile{}).
		Where("user_id = ?", p.UserID).
		Updates(map[string]interface{}{
			"completed_reviews":   p.CompletedReviews,
			"avg_completion_days": p.AvgCompletionDays,
			"avg_rating":          p.AvgRating,
			"rating_count":        p.RatingCount,
		})
	if res.Error != nil {
		return fmt.Errorf("update reviewer stats %d: %w", p.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindNotFound, "reviewer %d not found", p.UserID)
	}
	return nil
}

func (s *GormStore) AdjustWorkload(ctx context.Context, reviewerID uint, delta int) error {
	res := s.db.WithContext(ctx).Model(&models.ReviewerProfile{}).
		Where("user_id = ?", reviewerID).
		Update("open_assignments", gorm.Expr("GREATEST(open_assignments + ?, 0)", delta))
	if res.Error != nil {
		return fmt.Errorf("adjust workload for reviewer %d: %w", reviewerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(KindNotFound, "reviewer %d not found", reviewerID)
	}
	return nil
}

func (s *GormStore) CreateAttachment(ctx context.Context, att *models.SubmissionAttachment) error {
	if err := s.db.WithContext(ctx).Create(att).Error; err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

func (s *GormStore) ListAttachments(ctx context.Context, submissionID uint) ([]models.SubmissionAttachment, error) {
	var rows []models.SubmissionAttachment
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("attachment_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return rows, nil
}

func (s *GormStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("user_id = ? AND delete_at IS NULL", userID).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user %d not found", userID)
	}
	return &user, nil
}

func (s *GormStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *GormStore) QueryAudit(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditRecord{})
	if filter.ActorID != nil {
		q = q.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.ActionPrefix != "" {
		q = q.Where("action LIKE ?", escapeLike(filter.ActionPrefix)+"%")
	}
	if filter.ObjectType != "" {
		q = q.Where("object_type = ?", filter.ObjectType)
	}
	if filter.ObjectID != "" {
		q = q.Where("object_id = ?", filter.ObjectID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	var rows []models.AuditRecord
	if err := q.Order("created_at ASC, audit_id ASC").Limit(filter.effectiveLimit()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	return rows, nil
}

var _ WorkflowStore = (*GormStore)(nil)
var _ AuditSink = (*GormStore)(nil)
