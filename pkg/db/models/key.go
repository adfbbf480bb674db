package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// Key is a physical key tied to exactly one facility. Status changes only flow
// through the key state machine; CRUD updates never touch Status.
type Key struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code       string          `gorm:"column:code;type:text;not null;uniqueIndex"`
	NumCopies  int             `gorm:"column:num_copies;not null;default:1"`
	FacilityID uuid.UUID       `gorm:"column:facility_id;type:uuid;not null"`
	IsMaster   bool            `gorm:"column:is_master;not null;default:false"`
	Status     enums.KeyStatus `gorm:"column:status;type:text;not null;default:'D'"`
	Notes      *string         `gorm:"column:notes"`
	Facility   *Facility       `gorm:"foreignKey:FacilityID"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
