package people

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
)

type ListParams struct {
	Status *enums.RecordStatus
	Search string
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID         uuid.UUID          `json:"id"`
	FirstNames string             `json:"first_names"`
	LastNames  string             `json:"last_names"`
	CI         string             `json:"ci"`
	Email      *string            `json:"email,omitempty"`
	Phone      *string            `json:"phone,omitempty"`
	Status     enums.RecordStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type listQuery struct {
	status *enums.RecordStatus
	search string
	limit  int
	cursor *pkgpagination.Cursor
}

func toListItem(m models.Person) ListItem {
	return ListItem{
		ID:         m.ID,
		FirstNames: m.FirstNames,
		LastNames:  m.LastNames,
		CI:         m.CI,
		Email:      m.Email,
		Phone:      m.Phone,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
