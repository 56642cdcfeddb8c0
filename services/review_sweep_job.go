package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"

	"gorm.io/gorm"
)

var (
	ErrReviewSweepAlreadyRunning = errors.New("overdue review sweep already running")
)

type ReviewSweepSummary struct {
	AssignmentsScanned int `json:"scanned"`
	AssignmentsOverdue int `json:"overdue"`
	RemindersQueued    int `json:"reminders"`
	RemindersFailed    int `json:"failed"`
}

type ReviewSweepInput struct {
	TriggerSource string
	LockName      string
	Limit         int
	DryRun        bool
	RecordRun     bool
}

// ReviewSweepJobService reminds reviewers of overdue assignments. It never
// changes a submission's status.
type ReviewSweepJobService struct {
	db         *gorm.DB
	store      WorkflowStore
	notifier   Notifier
	runService *ReviewSweepRunService
	now        func() time.Time
}

func NewReviewSweepJobService(db *gorm.DB, store WorkflowStore, notifier Notifier) *ReviewSweepJobService {
	if db == nil {
		db = config.DB
	}
	return &ReviewSweepJobService{
		db:         db,
		store:      store,
		notifier:   notifier,
		runService: NewReviewSweepRunService(db),
		now:        time.Now,
	}
}

// Run sweeps overdue assignments. With a lock name it first takes a MySQL
// advisory lock on a dedicated connection and holds it for the whole sweep.
func (s *ReviewSweepJobService) Run(ctx context.Context, input *ReviewSweepInput) (*ReviewSweepSummary, error) {
	if input == nil {
		return nil, errors.New("input is nil")
	}
	if strings.TrimSpace(input.LockName) == "" {
		return s.sweep(ctx, input)
	}

	var summary *ReviewSweepSummary
	err := s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		release, err := acquireLock(ctx, conn, input.LockName)
		if err != nil {
			return err
		}
		defer func() {
			if relErr := release(); relErr != nil {
				log.Printf("failed to release overdue review lock: %v", relErr)
			}
		}()
		summary, err = s.sweep(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *ReviewSweepJobService) sweep(ctx context.Context, input *ReviewSweepInput) (*ReviewSweepSummary, error) {
	summary := &ReviewSweepSummary{}
	var err error

	var run *models.ReviewSweepRun
	if input.RecordRun {
		run, err = s.runService.Start(ctx, input.TriggerSource)
		if err != nil {
			return nil, err
		}
	}

	var finalErr error
	if run != nil {
		defer func() {
			if finalErr != nil {
				if err := s.runService.MarkFailure(ctx, run.ID, summary, finalErr); err != nil {
					log.Printf("failed to mark overdue review run failure: %v", err)
				}
			} else {
				if err := s.runService.MarkSuccess(ctx, run.ID, summary); err != nil {
					log.Printf("failed to mark overdue review run success: %v", err)
				}
			}
		}()
	}

	now := s.now().UTC()
	assignments, err := s.store.ListOverdueAssignments(ctx, now)
	if err != nil {
		finalErr = err
		return nil, err
	}
	if input.Limit > 0 && len(assignments) > input.Limit {
		assignments = assignments[:input.Limit]
	}

	titles := map[uint]string{}
	for _, a := range assignments {
		summary.AssignmentsScanned++
		if !a.IsOverdue(now) {
			continue
		}
		summary.AssignmentsOverdue++
		if input.DryRun || s.notifier == nil {
			continue
		}

		title, ok := titles[a.SubmissionID]
		if !ok {
			sub, err := s.store.GetSubmission(ctx, a.SubmissionID)
			if err != nil {
				log.Printf("overdue review: load submission %d: %v", a.SubmissionID, err)
			} else {
				title = sub.Title
			}
			titles[a.SubmissionID] = title
		}

		payload := map[string]string{
			"submission_id": idString(a.SubmissionID),
			"assignment_id": idString(a.AssignmentID),
			"title":         title,
			"round":         idString(uint(a.RoundNo)),
			"due_at":        a.DueAt.Format("2006-01-02"),
		}
		if err := s.notifier.Notify(ctx, a.ReviewerID, EventReviewOverdue, payload); err != nil {
			summary.RemindersFailed++
			log.Printf("overdue review reminder failed for assignment %d: %v", a.AssignmentID, err)
			continue
		}
		summary.RemindersQueued++
	}

	return summary, nil
}

// acquireLock takes the advisory lock on conn. GET_LOCK and RELEASE_LOCK are
// scoped to a MySQL session, so conn must be a pinned connection.
func acquireLock(ctx context.Context, conn *gorm.DB, lockName string) (func() error, error) {
	var ok int
	if err := conn.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", lockName).Scan(&ok).Error; err != nil {
		return nil, err
	}
	if ok != 1 {
		return nil, ErrReviewSweepAlreadyRunning
	}

	return func() error {
		var released int
		return conn.WithContext(persistentContext(ctx)).Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
	}, nil
}
