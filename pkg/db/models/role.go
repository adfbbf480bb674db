package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// Role groups users by what they may do (administrator, operator, auditor).
type Role struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string             `gorm:"column:name;type:text;not null;uniqueIndex"`
	Description *string            `gorm:"column:description"`
	Status      enums.RecordStatus `gorm:"column:status;type:text;not null;default:'A'"`
	Permissions []Permission       `gorm:"many2many:role_permissions"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
