package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// Loan records a key handed to a person by an operator. At most one loan per
// key may be active (status A) at any time.
type Loan struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	KeyID      uuid.UUID        `gorm:"column:key_id;type:uuid;not null;index"`
	PersonID   uuid.UUID        `gorm:"column:person_id;type:uuid;not null"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	LoanedAt   time.Time        `gorm:"column:loaned_at;not null"`
	DueAt      *time.Time       `gorm:"column:due_at"`
	ReturnedAt *time.Time       `gorm:"column:returned_at"`
	Status     enums.LoanStatus `gorm:"column:status;type:text;not null;default:'A'"`
	Notes      *string          `gorm:"column:notes"`
	Key        *Key             `gorm:"foreignKey:KeyID"`
	Person     *Person          `gorm:"foreignKey:PersonID"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
