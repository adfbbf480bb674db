package facilities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/internal/audit"
	pkgdb "github.com/keyward/keyward-backend/pkg/db"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
	"gorm.io/gorm"
)

type facilitiesRepository interface {
	Create(ctx context.Context, facility *models.Facility) (*models.Facility, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Facility, error)
	FindByCode(ctx context.Context, code string) (*models.Facility, error)
	List(ctx context.Context, opts listQuery) ([]models.Facility, error)
	Update(ctx context.Context, facility *models.Facility) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListTypes(ctx context.Context) ([]models.FacilityType, error)
	CreateType(ctx context.Context, ft *models.FacilityType) (*models.FacilityType, error)
	FindTypeByID(ctx context.Context, id uuid.UUID) (*models.FacilityType, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service exposes facility and facility type management.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input Input) (*models.Facility, error)
	Get(ctx context.Context, id uuid.UUID) (*ListItem, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input Input) (*models.Facility, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
	ListTypes(ctx context.Context) ([]TypeItem, error)
	CreateType(ctx context.Context, actorID uuid.UUID, name string) (*models.FacilityType, error)
}

type service struct {
	repo    facilitiesRepository
	auditor auditRecorder
}

// Input holds the fields accepted for facility create and update.
type Input struct {
	Code     string
	Name     string
	Location *string
	TypeID   uuid.UUID
	Status   enums.RecordStatus
}

// NewService builds the facility service.
func NewService(repo facilitiesRepository, auditor auditRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("facilities repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{repo: repo, auditor: auditor}, nil
}

func (s *service) validate(ctx context.Context, input *Input) error {
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	input.Name = strings.TrimSpace(input.Name)
	if input.Code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "facility code is required")
	}
	if input.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "facility name is required")
	}
	if input.Status == "" {
		input.Status = enums.RecordStatusActive
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Status))
	}
	if _, err := s.repo.FindTypeByID(ctx, input.TypeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "facility type not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading facility type")
	}
	return nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input Input) (*models.Facility, error) {
	if err := s.validate(ctx, &input); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByCode(ctx, input.Code); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("facility code %q already exists", input.Code))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking facility code")
	}

	facility := &models.Facility{
		Code:     input.Code,
		Name:     input.Name,
		Location: input.Location,
		TypeID:   input.TypeID,
		Status:   input.Status,
	}
	created, err := s.repo.Create(ctx, facility)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_facilities_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("facility code %q already exists", input.Code))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating facility")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "facilities",
		Operation: enums.AuditOperationInsert,
		RecordID:  &created.ID,
		UserID:    &actorID,
		After:     created,
	})
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ListItem, error) {
	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading facility")
	}
	item := toListItem(*facility)
	return &item, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, listQuery{
		status: params.Status,
		typeID: params.TypeID,
		search: strings.TrimSpace(params.Search),
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
		cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing facilities")
	}

	result := &ListResult{Items: make([]ListItem, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for _, row := range rows {
		result.Items = append(result.Items, toListItem(row))
	}
	if hasMore {
		last := rows[len(rows)-1]
		result.Cursor = pkgpagination.NextCursor(last.CreatedAt, last.ID)
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input Input) (*models.Facility, error) {
	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading facility")
	}
	if err := s.validate(ctx, &input); err != nil {
		return nil, err
	}
	if input.Code != facility.Code {
		if _, err := s.repo.FindByCode(ctx, input.Code); err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("facility code %q already exists", input.Code))
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking facility code")
		}
	}

	before := *facility
	facility.Code = input.Code
	facility.Name = input.Name
	facility.Location = input.Location
	facility.TypeID = input.TypeID
	facility.Status = input.Status
	facility.Type = nil

	if err := s.repo.Update(ctx, facility); err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_facilities_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("facility code %q already exists", input.Code))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating facility")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "facilities",
		Operation: enums.AuditOperationUpdate,
		RecordID:  &facility.ID,
		UserID:    &actorID,
		Before:    before,
		After:     facility,
	})
	return facility, nil
}

func (s *service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading facility")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
		}
		if pkgdb.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "facility still has keys")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting facility")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "facilities",
		Operation: enums.AuditOperationDelete,
		RecordID:  &id,
		UserID:    &actorID,
		Before:    facility,
	})
	return nil
}

func (s *service) ListTypes(ctx context.Context) ([]TypeItem, error) {
	rows, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing facility types")
	}
	items := make([]TypeItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, TypeItem{ID: row.ID, Name: row.Name})
	}
	return items, nil
}

func (s *service) CreateType(ctx context.Context, actorID uuid.UUID, name string) (*models.FacilityType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type name is required")
	}

	created, err := s.repo.CreateType(ctx, &models.FacilityType{Name: name})
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_facility_types_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("facility type %q already exists", name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating facility type")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "facility_types",
		Operation: enums.AuditOperationInsert,
		RecordID:  &created.ID,
		UserID:    &actorID,
		After:     created,
	})
	return created, nil
}
