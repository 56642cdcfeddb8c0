package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"

	"gorm.io/gorm"
)

var (
	ErrReviewSweepRunNotFound = errors.New("overdue review run not found")
)

type ReviewSweepRunService struct {
	db *gorm.DB
}

func NewReviewSweepRunService(db *gorm.DB) *ReviewSweepRunService {
	if db == nil {
		db = config.DB
	}
	return &ReviewSweepRunService{db: db}
}

func (s *ReviewSweepRunService) Start(ctx context.Context, trigger string) (*models.ReviewSweepRun, error) {
	if trigger == "" {
		trigger = "unknown"
	}
	run := &models.ReviewSweepRun{
		TriggerSource: trigger,
		Status:        models.ReviewSweepRunStatusRunning,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (s *ReviewSweepRunService) MarkSuccess(ctx context.Context, runID uint, summary *ReviewSweepSummary) error {
	return s.finish(ctx, runID, models.ReviewSweepRunStatusSuccess, summary, nil)
}

func (s *ReviewSweepRunService) MarkFailure(ctx context.Context, runID uint, summary *ReviewSweepSummary, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.finish(ctx, runID, models.ReviewSweepRunStatusFailed, summary, &msg)
}

// Latest returns the most recent runs, newest first.
func (s *ReviewSweepRunService) Latest(ctx context.Context, limit int) ([]models.ReviewSweepRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.ReviewSweepRun
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *ReviewSweepRunService) finish(ctx context.Context, runID uint, status string, summary *ReviewSweepSummary, errMsg *string) error {
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now(),
	}
	if summary != nil {
		updates["assignments_scanned"] = summary.AssignmentsScanned
		updates["assignments_overdue"] = summary.AssignmentsOverdue
		updates["reminders_queued"] = summary.RemindersQueued
	}
	if errMsg != nil {
		if len(*errMsg) > 1000 {
			updates["error_message"] = fmt.Sprintf("%s...", (*errMsg)[:997])
		} else {
			updates["error_message"] = *errMsg
		}
	}
	res := s.db.WithContext(persistentContext(ctx)).Model(&models.ReviewSweepRun{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReviewSweepRunNotFound
	}
	return nil
}
