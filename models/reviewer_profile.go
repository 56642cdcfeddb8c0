package models

import "time"

// ReviewerProfile is the directory projection consulted by reviewer matching.
// Expertise and Keywords arrive pre-computed from the search pipeline.
type ReviewerProfile struct {
	UserID            uint      `gorm:"primaryKey;autoIncrement:false;column:user_id" json:"user_id"`
	DisplayName       string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Expertise         []string  `gorm:"column:expertise;type:json;serializer:json" json:"expertise"`
	Keywords          []string  `gorm:"column:keywords;type:json;serializer:json" json:"keywords"`
	OpenAssignments   int       `gorm:"column:open_assignments;not null;default:0" json:"open_assignments"`
	CompletedReviews  int       `gorm:"column:completed_reviews;not null;default:0" json:"completed_reviews"`
	AvgCompletionDays float64   `gorm:"column:avg_completion_days;not null;default:0" json:"avg_completion_days"`
	AvgRating         float64   `gorm:"column:avg_rating;not null;default:0" json:"avg_rating"`
	RatingCount       int       `gorm:"column:rating_count;not null;default:0" json:"rating_count"`
	Active            bool      `gorm:"column:active;not null;default:true" json:"active"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ReviewerProfile) TableName() string {
	return "reviewer_profiles"
}

func (p ReviewerProfile) Clone() ReviewerProfile {
	out := p
	out.Expertise = append([]string(nil), p.Expertise...)
	out.Keywords = append([]string(nil), p.Keywords...)
	return out
}

// RecordCompletion folds one finished review into the rolling completion average.
func (p *ReviewerProfile) RecordCompletion(days float64) {
	if days < 0 {
		days = 0
	}
	total := p.AvgCompletionDays * float64(p.CompletedReviews)
	p.CompletedReviews++
	p.AvgCompletionDays = (total + days) / float64(p.CompletedReviews)
}

// RecordRating folds one editor rating into the rolling rating average.
func (p *ReviewerProfile) RecordRating(rating int) {
	total := p.AvgRating * float64(p.RatingCount)
	p.RatingCount++
	p.AvgRating = (total + float64(rating)) / float64(p.RatingCount)
}
