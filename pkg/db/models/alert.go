package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// Alert is a generated notification (overdue return, lost key, ...).
type Alert struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AlertType   enums.AlertType `gorm:"column:alert_type;type:text;not null"`
	LoanID      *uuid.UUID      `gorm:"column:loan_id;type:uuid"`
	KeyID       *uuid.UUID      `gorm:"column:key_id;type:uuid"`
	Message     string          `gorm:"column:message;type:text;not null"`
	GeneratedAt time.Time       `gorm:"column:generated_at;not null"`
	Read        bool            `gorm:"column:read;not null;default:false"`
}
