package models

import "time"

// SubmissionAttachment references an opaque blob held by the file store. The
// workflow never reads the content behind BlobRef.
type SubmissionAttachment struct {
	AttachmentID uint      `gorm:"primaryKey;column:attachment_id" json:"attachment_id"`
	SubmissionID uint      `gorm:"column:submission_id;not null;index" json:"submission_id"`
	AssignmentID *uint     `gorm:"column:assignment_id" json:"assignment_id,omitempty"`
	RoundNo      int       `gorm:"column:round_no;not null;default:0" json:"round_no"`
	BlobRef      string    `gorm:"column:blob_ref;type:varchar(255);not null" json:"blob_ref"`
	Kind         string    `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	UploadedBy   uint      `gorm:"column:uploaded_by;not null" json:"uploaded_by"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SubmissionAttachment) TableName() string {
	return "submission_attachments"
}

const (
	AttachmentManuscript = "manuscript"
	AttachmentRevision   = "revision"
	AttachmentReview     = "review"
	AttachmentProof      = "proof"
)

// ValidAttachmentKind reports whether kind is one of the known attachment kinds.
func ValidAttachmentKind(kind string) bool {
	switch kind {
	case AttachmentManuscript, AttachmentRevision, AttachmentReview, AttachmentProof:
		return true
	}
	return false
}
