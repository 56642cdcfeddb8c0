package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by the gorm hooks guarding audit_records.
var ErrAuditImmutable = errors.New("audit records are append-only")

// AuditRecord is an immutable entry describing who changed what, and the state
// before and after. A nil ActorID denotes the system.
type AuditRecord struct {
	AuditID    uint            `gorm:"primaryKey;column:audit_id" json:"audit_id"`
	RecordUUID string          `gorm:"column:record_uuid;type:char(36);uniqueIndex" json:"record_uuid"`
	ActorID    *uint           `gorm:"column:actor_id;index" json:"actor_id,omitempty"`
	ActorRole  string          `gorm:"column:actor_role;type:varchar(32)" json:"actor_role,omitempty"`
	Action     string          `gorm:"column:action;type:varchar(64);not null;index" json:"action"`
	ObjectType string          `gorm:"column:object_type;type:varchar(64);not null;index:idx_audit_object" json:"object_type"`
	ObjectID   string          `gorm:"column:object_id;type:varchar(64);not null;index:idx_audit_object" json:"object_id"`
	Before     json.RawMessage `gorm:"column:before_state;type:json" json:"before,omitempty"`
	After      json.RawMessage `gorm:"column:after_state;type:json" json:"after,omitempty"`
	Metadata   json.RawMessage `gorm:"column:metadata;type:json" json:"metadata,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}

func (AuditRecord) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (AuditRecord) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
