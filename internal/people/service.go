package people

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/internal/audit"
	pkgdb "github.com/keyward/keyward-backend/pkg/db"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
	"gorm.io/gorm"
)

type peopleRepository interface {
	Create(ctx context.Context, person *models.Person) (*models.Person, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
	FindByCI(ctx context.Context, ci string) (*models.Person, error)
	List(ctx context.Context, opts listQuery) ([]models.Person, error)
	Update(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service exposes person management.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input Input) (*models.Person, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Person, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input Input) (*models.Person, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

type service struct {
	repo    peopleRepository
	auditor auditRecorder
}

// Input holds the fields accepted for person create and update.
type Input struct {
	FirstNames string
	LastNames  string
	CI         string
	BirthDate  *time.Time
	Gender     *string
	Email      *string
	Phone      *string
	Status     enums.RecordStatus
}

// NewService builds the person service.
func NewService(repo peopleRepository, auditor auditRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("people repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{repo: repo, auditor: auditor}, nil
}

func validateInput(input *Input) error {
	input.FirstNames = strings.TrimSpace(input.FirstNames)
	input.LastNames = strings.TrimSpace(input.LastNames)
	input.CI = strings.TrimSpace(input.CI)
	if input.FirstNames == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "first names are required")
	}
	if input.LastNames == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "last names are required")
	}
	if input.CI == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "ci is required")
	}
	if input.Status == "" {
		input.Status = enums.RecordStatusActive
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Status))
	}
	return nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input Input) (*models.Person, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByCI(ctx, input.CI); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("person with ci %q already exists", input.CI))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking ci")
	}

	person := &models.Person{
		FirstNames: input.FirstNames,
		LastNames:  input.LastNames,
		CI:         input.CI,
		BirthDate:  input.BirthDate,
		Gender:     input.Gender,
		Email:      input.Email,
		Phone:      input.Phone,
		Status:     input.Status,
	}
	created, err := s.repo.Create(ctx, person)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_people_ci") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("person with ci %q already exists", input.CI))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating person")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "people",
		Operation: enums.AuditOperationInsert,
		RecordID:  &created.ID,
		UserID:    &actorID,
		After:     created,
	})
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading person")
	}
	return person, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, listQuery{
		status: params.Status,
		search: strings.TrimSpace(params.Search),
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
		cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing people")
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

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input Input) (*models.Person, error) {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading person")
	}
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if input.CI != person.CI {
		if _, err := s.repo.FindByCI(ctx, input.CI); err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("person with ci %q already exists", input.CI))
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking ci")
		}
	}

	before := *person
	person.FirstNames = input.FirstNames
	person.LastNames = input.LastNames
	person.CI = input.CI
	person.BirthDate = input.BirthDate
	person.Gender = input.Gender
	person.Email = input.Email
	person.Phone = input.Phone
	person.Status = input.Status

	if err := s.repo.Update(ctx, person); err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_people_ci") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("person with ci %q already exists", input.CI))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating person")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "people",
		Operation: enums.AuditOperationUpdate,
		RecordID:  &person.ID,
		UserID:    &actorID,
		Before:    before,
		After:     person,
	})
	return person, nil
}

func (s *service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading person")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
		}
		if pkgdb.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "person has loans, reservations or a user account")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting person")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "people",
		Operation: enums.AuditOperationDelete,
		RecordID:  &id,
		UserID:    &actorID,
		Before:    person,
	})
	return nil
}
