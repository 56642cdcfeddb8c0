package models

import (
	"encoding/json"
	"time"
)

// ReviewRound groups the assignments of one review cycle. Round numbers are
// contiguous per submission, starting at 1.
type ReviewRound struct {
	RoundID      uint        `gorm:"primaryKey;column:round_id" json:"round_id"`
	SubmissionID uint        `gorm:"column:submission_id;not null;uniqueIndex:uq_round_submission_no" json:"submission_id"`
	RoundNo      int         `gorm:"column:round_no;not null;uniqueIndex:uq_round_submission_no" json:"round_no"`
	Status       RoundStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	OpenedBy     *uint       `gorm:"column:opened_by" json:"opened_by,omitempty"`
	OpenedAt     *time.Time  `gorm:"column:opened_at" json:"opened_at,omitempty"`
	DecidedAt    *time.Time  `gorm:"column:decided_at" json:"decided_at,omitempty"`
	CreatedAt    time.Time   `gorm:"column:created_at" json:"created_at"`

	Assignments []ReviewAssignment `gorm:"-" json:"assignments,omitempty"`
}

func (ReviewRound) TableName() string {
	return "review_rounds"
}

// ReviewAssignment is one reviewer's obligation within a round. Once
// SubmittedAt is set the row is immutable apart from the editor's rating.
type ReviewAssignment struct {
	AssignmentID   uint            `gorm:"primaryKey;column:assignment_id" json:"assignment_id"`
	SubmissionID   uint            `gorm:"column:submission_id;not null;index:idx_assignment_submission_round" json:"submission_id"`
	RoundNo        int             `gorm:"column:round_no;not null;index:idx_assignment_submission_round" json:"round_no"`
	ReviewerID     uint            `gorm:"column:reviewer_id;not null;index" json:"reviewer_id"`
	AssignedBy     *uint           `gorm:"column:assigned_by" json:"assigned_by,omitempty"`
	AssignedAt     time.Time       `gorm:"column:assigned_at;not null" json:"assigned_at"`
	DueAt          *time.Time      `gorm:"column:due_at" json:"due_at,omitempty"`
	SubmittedAt    *time.Time      `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	Recommendation *Recommendation `gorm:"column:recommendation;type:varchar(16)" json:"recommendation,omitempty"`
	Score          *float64        `gorm:"column:score" json:"score,omitempty"`
	FormJSON       json.RawMessage `gorm:"column:form_json;type:json" json:"form,omitempty"`
	Rating         *int            `gorm:"column:rating" json:"rating,omitempty"`
	RatedAt        *time.Time      `gorm:"column:rated_at" json:"rated_at,omitempty"`
}

func (ReviewAssignment) TableName() string {
	return "review_assignments"
}

// Pending reports whether the reviewer still owes a report.
func (a ReviewAssignment) Pending() bool {
	return a.SubmittedAt == nil
}

// IsOverdue reports whether a pending assignment is past its due date at now.
func (a ReviewAssignment) IsOverdue(now time.Time) bool {
	if !a.Pending() || a.DueAt == nil {
		return false
	}
	return now.After(*a.DueAt)
}

func (a ReviewAssignment) Clone() ReviewAssignment {
	out := a
	if a.DueAt != nil {
		v := *a.DueAt
		out.DueAt = &v
	}
	if a.SubmittedAt != nil {
		v := *a.SubmittedAt
		out.SubmittedAt = &v
	}
	if a.Recommendation != nil {
		v := *a.Recommendation
		out.Recommendation = &v
	}
	if a.Score != nil {
		v := *a.Score
		out.Score = &v
	}
	if a.Rating != nil {
		v := *a.Rating
		out.Rating = &v
	}
	if a.RatedAt != nil {
		v := *a.RatedAt
		out.RatedAt = &v
	}
	if a.AssignedBy != nil {
		v := *a.AssignedBy
		out.AssignedBy = &v
	}
	if a.FormJSON != nil {
		out.FormJSON = append(json.RawMessage(nil), a.FormJSON...)
	}
	return out
}

// EditorialDecision is the single ruling recorded for a (submission, round).
type EditorialDecision struct {
	DecisionID   uint      `gorm:"primaryKey;column:decision_id" json:"decision_id"`
	SubmissionID uint      `gorm:"column:submission_id;not null;uniqueIndex:uq_decision_submission_round" json:"submission_id"`
	RoundNo      int       `gorm:"column:round_no;not null;uniqueIndex:uq_decision_submission_round" json:"round_no"`
	EditorID     uint      `gorm:"column:editor_id;not null" json:"editor_id"`
	Decision     Decision  `gorm:"column:decision;type:varchar(16);not null" json:"decision"`
	Note         *string   `gorm:"column:note;type:text" json:"note,omitempty"`
	DecidedAt    time.Time `gorm:"column:decided_at;not null" json:"decided_at"`
}

func (EditorialDecision) TableName() string {
	return "editorial_decisions"
}
