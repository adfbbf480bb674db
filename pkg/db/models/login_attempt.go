package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt records every sign-in attempt, successful or not.
type LoginAttempt struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username   string    `gorm:"column:username;type:text;not null"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
	IP         *string   `gorm:"column:ip"`
	Succeeded  bool      `gorm:"column:succeeded;not null;default:false"`
}
