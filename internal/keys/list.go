package keys

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
)

type ListParams struct {
	Status     *enums.KeyStatus
	FacilityID *uuid.UUID
	Search     string
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	NumCopies    int             `json:"num_copies"`
	FacilityID   uuid.UUID       `json:"facility_id"`
	FacilityName string          `json:"facility_name,omitempty"`
	IsMaster     bool            `json:"is_master"`
	Status       enums.KeyStatus `json:"status"`
	Notes        *string         `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type listQuery struct {
	status     *enums.KeyStatus
	facilityID *uuid.UUID
	search     string
	limit      int
	cursor     *pkgpagination.Cursor
}

func toListItem(m models.Key) ListItem {
	item := ListItem{
		ID:         m.ID,
		Code:       m.Code,
		NumCopies:  m.NumCopies,
		FacilityID: m.FacilityID,
		IsMaster:   m.IsMaster,
		Status:     m.Status,
		Notes:      m.Notes,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Facility != nil {
		item.FacilityName = m.Facility.Name
	}
	return item
}

// Detail is the full key view: facility, recent movement history, and the
// people authorized to request it.
type Detail struct {
	Key          ListItem          `json:"key"`
	Facility     *FacilityView     `json:"facility,omitempty"`
	Loans        []LoanView        `json:"loans"`
	Reservations []ReservationView `json:"reservations"`
	Authorized   []AuthorizedView  `json:"authorized"`
}

type FacilityView struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Location *string   `json:"location,omitempty"`
	TypeName string    `json:"type_name,omitempty"`
}

type LoanView struct {
	ID         uuid.UUID        `json:"id"`
	PersonID   uuid.UUID        `json:"person_id"`
	PersonName string           `json:"person_name,omitempty"`
	LoanedAt   time.Time        `json:"loaned_at"`
	DueAt      *time.Time       `json:"due_at,omitempty"`
	ReturnedAt *time.Time       `json:"returned_at,omitempty"`
	Status     enums.LoanStatus `json:"status"`
}

type ReservationView struct {
	ID         uuid.UUID               `json:"id"`
	PersonID   uuid.UUID               `json:"person_id"`
	PersonName string                  `json:"person_name,omitempty"`
	StartsAt   time.Time               `json:"starts_at"`
	EndsAt     time.Time               `json:"ends_at"`
	Status     enums.ReservationStatus `json:"status"`
}

type AuthorizedView struct {
	PersonID   uuid.UUID `json:"person_id"`
	PersonName string    `json:"person_name,omitempty"`
	CI         string    `json:"ci,omitempty"`
	Since      time.Time `json:"since"`
}

func toFacilityView(f *models.Facility) *FacilityView {
	if f == nil {
		return nil
	}
	view := &FacilityView{
		ID:       f.ID,
		Code:     f.Code,
		Name:     f.Name,
		Location: f.Location,
	}
	if f.Type != nil {
		view.TypeName = f.Type.Name
	}
	return view
}

func toLoanView(m models.Loan) LoanView {
	view := LoanView{
		ID:         m.ID,
		PersonID:   m.PersonID,
		LoanedAt:   m.LoanedAt,
		DueAt:      m.DueAt,
		ReturnedAt: m.ReturnedAt,
		Status:     m.Status,
	}
	if m.Person != nil {
		view.PersonName = m.Person.FullName()
	}
	return view
}

func toReservationView(m models.Reservation) ReservationView {
	view := ReservationView{
		ID:       m.ID,
		PersonID: m.PersonID,
		StartsAt: m.StartsAt,
		EndsAt:   m.EndsAt,
		Status:   m.Status,
	}
	if m.Person != nil {
		view.PersonName = m.Person.FullName()
	}
	return view
}

func toAuthorizedView(m models.AuthorizedPerson) AuthorizedView {
	view := AuthorizedView{
		PersonID: m.PersonID,
		Since:    m.CreatedAt,
	}
	if m.Person != nil {
		view.PersonName = m.Person.FullName()
		view.CI = m.Person.CI
	}
	return view
}
