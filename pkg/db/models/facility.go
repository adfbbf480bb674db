package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// Facility is a physical room or environment that keys belong to.
type Facility struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string             `gorm:"column:code;type:text;not null;uniqueIndex"`
	Name      string             `gorm:"column:name;type:text;not null"`
	Location  *string            `gorm:"column:location"`
	TypeID    uuid.UUID          `gorm:"column:type_id;type:uuid;not null"`
	Status    enums.RecordStatus `gorm:"column:status;type:text;not null;default:'A'"`
	Type      *FacilityType      `gorm:"foreignKey:TypeID"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
