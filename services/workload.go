package services

import (
	"context"

	"editorial-workflow-api/models"
)

// WorkloadStatus is a reviewer's open-assignment count against the configured ceiling.
type WorkloadStatus struct {
	ReviewerID      uint `json:"reviewer_id"`
	OpenAssignments int  `json:"open_assignments"`
	MaxConcurrent   int  `json:"max_concurrent"`
	Available       bool `json:"available"`
}

// WorkloadTracker owns the per-reviewer open-assignment counters. Every change
// goes through Acquire or Release inside the transaction that creates or
// completes the assignment, so counters and assignments commit together.
type WorkloadTracker struct {
	store         WorkflowStore
	maxConcurrent int
}

func NewWorkloadTracker(store WorkflowStore, maxConcurrent int) *WorkloadTracker {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &WorkloadTracker{store: store, maxConcurrent: maxConcurrent}
}

// Acquire counts one new open assignment for reviewerID.
func (w *WorkloadTracker) Acquire(ctx context.Context, tx WorkflowStore, reviewerID uint) error {
	return tx.AdjustWorkload(ctx, reviewerID, 1)
}

// Release counts one completed assignment. Counters never drop below zero.
func (w *WorkloadTracker) Release(ctx context.Context, tx WorkflowStore, reviewerID uint) error {
	return tx.AdjustWorkload(ctx, reviewerID, -1)
}

// Current reads the reviewer's counter.
func (w *WorkloadTracker) Current(ctx context.Context, reviewerID uint) (WorkloadStatus, error) {
	profile, err := w.store.GetReviewerProfile(ctx, reviewerID)
	if err != nil {
		return WorkloadStatus{}, err
	}
	return w.status(profile), nil
}

func (w *WorkloadTracker) status(p *models.ReviewerProfile) WorkloadStatus {
	return WorkloadStatus{
		ReviewerID:      p.UserID,
		OpenAssignments: p.OpenAssignments,
		MaxConcurrent:   w.maxConcurrent,
		Available:       p.OpenAssignments < w.maxConcurrent,
	}
}
