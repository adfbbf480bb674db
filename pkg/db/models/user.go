package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/enums"
)

// User is a sign-in account bound to a person and a role. PasswordHash is
// always a bcrypt hash, never plain text.
type User struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PersonID     uuid.UUID        `gorm:"column:person_id;type:uuid;not null"`
	RoleID       uuid.UUID        `gorm:"column:role_id;type:uuid;not null"`
	Username     string           `gorm:"column:username;type:text;not null;uniqueIndex"`
	PasswordHash string           `gorm:"column:password_hash;not null"`
	ValidFrom    *time.Time       `gorm:"column:valid_from"`
	ValidUntil   *time.Time       `gorm:"column:valid_until"`
	Status       enums.UserStatus `gorm:"column:status;type:text;not null;default:'A'"`
	LastLoginAt  *time.Time       `gorm:"column:last_login_at"`
	Person       *Person          `gorm:"foreignKey:PersonID"`
	Role         *Role            `gorm:"foreignKey:RoleID"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
