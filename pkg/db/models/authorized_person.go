package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthorizedPerson grants a person permission to request a specific key.
type AuthorizedPerson struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PersonID  uuid.UUID `gorm:"column:person_id;type:uuid;not null;uniqueIndex:idx_authorized_person_key"`
	KeyID     uuid.UUID `gorm:"column:key_id;type:uuid;not null;uniqueIndex:idx_authorized_person_key"`
	Person    *Person   `gorm:"foreignKey:PersonID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
