package facilities

import (
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
)

type ListParams struct {
	Status *enums.RecordStatus
	TypeID *uuid.UUID
	Search string
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID        uuid.UUID          `json:"id"`
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Location  *string            `json:"location,omitempty"`
	TypeID    uuid.UUID          `json:"type_id"`
	TypeName  string             `json:"type_name,omitempty"`
	Status    enums.RecordStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type TypeItem struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type listQuery struct {
	status *enums.RecordStatus
	typeID *uuid.UUID
	search string
	limit  int
	cursor *pkgpagination.Cursor
}

func toListItem(m models.Facility) ListItem {
	item := ListItem{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		Location:  m.Location,
		TypeID:    m.TypeID,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Type != nil {
		item.TypeName = m.Type.Name
	}
	return item
}
