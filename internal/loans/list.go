package loans

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
)

type ListParams struct {
	KeyID    *uuid.UUID
	PersonID *uuid.UUID
	Status   *enums.LoanStatus
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID         uuid.UUID        `json:"id"`
	KeyID      uuid.UUID        `json:"key_id"`
	KeyCode    string           `json:"key_code,omitempty"`
	PersonID   uuid.UUID        `json:"person_id"`
	PersonName string           `json:"person_name,omitempty"`
	LoanedAt   time.Time        `json:"loaned_at"`
	DueAt      *time.Time       `json:"due_at,omitempty"`
	ReturnedAt *time.Time       `json:"returned_at,omitempty"`
	Status     enums.LoanStatus `json:"status"`
	Notes      *string          `json:"notes,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

type listQuery struct {
	keyID    *uuid.UUID
	personID *uuid.UUID
	status   *enums.LoanStatus
	limit    int
	cursor   *pkgpagination.Cursor
}

func toListItem(m models.Loan) ListItem {
	item := ListItem{
		ID:         m.ID,
		KeyID:      m.KeyID,
		PersonID:   m.PersonID,
		LoanedAt:   m.LoanedAt,
		DueAt:      m.DueAt,
		ReturnedAt: m.ReturnedAt,
		Status:     m.Status,
		Notes:      m.Notes,
		CreatedAt:  m.CreatedAt,
	}
	if m.Key != nil {
		item.KeyCode = m.Key.Code
	}
	if m.Person != nil {
		item.PersonName = m.Person.FullName()
	}
	return item
}
