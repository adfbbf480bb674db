package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
)

type ListParams struct {
	Status *enums.UserStatus
	RoleID *uuid.UUID
	Search string
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

// ListItem is the outward user view. The password hash never leaves the
// service layer.
type ListItem struct {
	ID          uuid.UUID        `json:"id"`
	Username    string           `json:"username"`
	PersonID    uuid.UUID        `json:"person_id"`
	PersonName  string           `json:"person_name,omitempty"`
	RoleID      uuid.UUID        `json:"role_id"`
	RoleName    string           `json:"role_name,omitempty"`
	ValidFrom   *time.Time       `json:"valid_from,omitempty"`
	ValidUntil  *time.Time       `json:"valid_until,omitempty"`
	Status      enums.UserStatus `json:"status"`
	LastLoginAt *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type listQuery struct {
	status *enums.UserStatus
	roleID *uuid.UUID
	search string
	limit  int
	cursor *pkgpagination.Cursor
}

func toListItem(m models.User) ListItem {
	item := ListItem{
		ID:          m.ID,
		Username:    m.Username,
		PersonID:    m.PersonID,
		RoleID:      m.RoleID,
		ValidFrom:   m.ValidFrom,
		ValidUntil:  m.ValidUntil,
		Status:      m.Status,
		LastLoginAt: m.LastLoginAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Person != nil {
		item.PersonName = m.Person.FullName()
	}
	if m.Role != nil {
		item.RoleName = m.Role.Name
	}
	return item
}
