package reservations

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
	Status   *enums.ReservationStatus
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID         uuid.UUID               `json:"id"`
	KeyID      uuid.UUID               `json:"key_id"`
	KeyCode    string                  `json:"key_code,omitempty"`
	PersonID   uuid.UUID               `json:"person_id"`
	PersonName string                  `json:"person_name,omitempty"`
	StartsAt   time.Time               `json:"starts_at"`
	EndsAt     time.Time               `json:"ends_at"`
	Status     enums.ReservationStatus `json:"status"`
	CreatedAt  time.Time               `json:"created_at"`
}

type listQuery struct {
	keyID    *uuid.UUID
	personID *uuid.UUID
	status   *enums.ReservationStatus
	limit    int
	cursor   *pkgpagination.Cursor
}

func toListItem(m models.Reservation) ListItem {
	item := ListItem{
		ID:        m.ID,
		KeyID:     m.KeyID,
		PersonID:  m.PersonID,
		StartsAt:  m.StartsAt,
		EndsAt:    m.EndsAt,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
	if m.Key != nil {
		item.KeyCode = m.Key.Code
	}
	if m.Person != nil {
		item.PersonName = m.Person.FullName()
	}
	return item
}
