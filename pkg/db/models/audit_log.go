package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// AuditLog traces every significant mutation. Rows are append-only.
type AuditLog struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TableName  string               `gorm:"column:table_name;type:text;not null"`
	Operation  enums.AuditOperation `gorm:"column:operation;type:text;not null"`
	RecordID   *uuid.UUID           `gorm:"column:record_id;type:uuid"`
	UserID     *uuid.UUID           `gorm:"column:user_id;type:uuid"`
	OccurredAt time.Time            `gorm:"column:occurred_at;not null"`
	Before     *string              `gorm:"column:before_json"`
	After      *string              `gorm:"column:after_json"`
}
