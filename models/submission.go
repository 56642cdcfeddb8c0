package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Submission is a manuscript moving through the editorial workflow. Status is
// only ever written through the workflow state machine.
type Submission struct {
	SubmissionID      uint             `gorm:"primaryKey;column:submission_id" json:"submission_id"`
	Title             string           `gorm:"column:title;type:varchar(512);not null" json:"title"`
	Abstract          string           `gorm:"column:abstract;type:text" json:"abstract"`
	AbstractSecondary *string          `gorm:"column:abstract_secondary;type:text" json:"abstract_secondary,omitempty"`
	Keywords          []string         `gorm:"column:keywords;type:json;serializer:json" json:"keywords"`
	CategoryID        *uint            `gorm:"column:category_id" json:"category_id,omitempty"`
	CategoryName      string           `gorm:"column:category_name;type:varchar(255)" json:"category_name,omitempty"`
	AuthorID          uint             `gorm:"column:author_id;not null;index" json:"author_id"`
	SecurityLevel     int              `gorm:"column:security_level;not null;default:0" json:"security_level"`
	Status            SubmissionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	CurrentRound      int              `gorm:"column:current_round;not null;default:0" json:"current_round"`
	Version           int              `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt         time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"column:updated_at" json:"updated_at"`

	Rounds []ReviewRound `gorm:"foreignKey:SubmissionID;references:SubmissionID" json:"rounds,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

// BeforeSave rejects rows whose status is outside the lifecycle enum.
func (s *Submission) BeforeSave(tx *gorm.DB) error {
	if !s.Status.Valid() {
		return fmt.Errorf("invalid submission status %q", s.Status)
	}
	return nil
}

// Clone returns a deep copy suitable for before/after snapshots.
func (s Submission) Clone() Submission {
	out := s
	out.Keywords = append([]string(nil), s.Keywords...)
	if s.AbstractSecondary != nil {
		v := *s.AbstractSecondary
		out.AbstractSecondary = &v
	}
	if s.CategoryID != nil {
		v := *s.CategoryID
		out.CategoryID = &v
	}
	out.Rounds = nil
	return out
}
