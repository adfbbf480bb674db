package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// Person is someone who can borrow or reserve keys (staff, student, ...).
type Person struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FirstNames string             `gorm:"column:first_names;type:text;not null"`
	LastNames  string             `gorm:"column:last_names;type:text;not null"`
	CI         string             `gorm:"column:ci;type:text;not null;uniqueIndex"`
	BirthDate  *time.Time         `gorm:"column:birth_date"`
	Gender     *string            `gorm:"column:gender;type:text"`
	Email      *string            `gorm:"column:email"`
	Phone      *string            `gorm:"column:phone"`
	Status     enums.RecordStatus `gorm:"column:status;type:text;not null;default:'A'"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins the name parts for display and alert messages.
func (p Person) FullName() string {
	return p.FirstNames + " " + p.LastNames
}
