package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// Reservation books a key for a person over a future window.
type Reservation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	KeyID     uuid.UUID               `gorm:"column:key_id;type:uuid;not null;index"`
	PersonID  uuid.UUID               `gorm:"column:person_id;type:uuid;not null"`
	UserID    uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	StartsAt  time.Time               `gorm:"column:starts_at;not null"`
	EndsAt    time.Time               `gorm:"column:ends_at;not null"`
	Status    enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'P'"`
	Key       *Key                    `gorm:"foreignKey:KeyID"`
	Person    *Person                 `gorm:"foreignKey:PersonID"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
