package roles

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
	"gorm.io/gorm"
)

type rolesRepository interface {
	Create(ctx context.Context, role *models.Role) (*models.Role, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	FindPermissions(ctx context.Context, ids []uuid.UUID) ([]models.Permission, error)
	ReplacePermissions(ctx context.Context, role *models.Role, permissions []models.Permission) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service exposes role and permission management.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input Input) (*models.Role, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input Input) (*models.Role, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	SetPermissions(ctx context.Context, actorID, roleID uuid.UUID, permissionIDs []uuid.UUID) (*models.Role, error)
}

type service struct {
	repo    rolesRepository
	auditor auditRecorder
}

// Input holds the fields accepted for role create and update.
type Input struct {
	Name        string
	Description *string
	Status      enums.RecordStatus
}

// NewService builds the role service.
func NewService(repo rolesRepository, auditor auditRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("roles repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{repo: repo, auditor: auditor}, nil
}

func validateInput(input *Input) error {
	input.Name = strings.ToLower(strings.TrimSpace(input.Name))
	if input.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "role name is required")
	}
	if input.Status == "" {
		input.Status = enums.RecordStatusActive
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Status))
	}
	return nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input Input) (*models.Role, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByName(ctx, input.Name); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("role %q already exists", input.Name))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking role name")
	}

	created, err := s.repo.Create(ctx, &models.Role{
		Name:        input.Name,
		Description: input.Description,
		Status:      input.Status,
	})
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_roles_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("role %q already exists", input.Name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating role")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "roles",
		Operation: enums.AuditOperationInsert,
		RecordID:  &created.ID,
		UserID:    &actorID,
		After:     created,
	})
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading role")
	}
	return role, nil
}

func (s *service) List(ctx context.Context) ([]models.Role, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing roles")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input Input) (*models.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading role")
	}
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if input.Name != role.Name {
		if _, err := s.repo.FindByName(ctx, input.Name); err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("role %q already exists", input.Name))
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking role name")
		}
	}

	before := *role
	role.Name = input.Name
	role.Description = input.Description
	role.Status = input.Status
	role.Permissions = nil

	if err := s.repo.Update(ctx, role); err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_roles_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("role %q already exists", input.Name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating role")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "roles",
		Operation: enums.AuditOperationUpdate,
		RecordID:  &role.ID,
		UserID:    &actorID,
		Before:    before,
		After:     role,
	})
	return role, nil
}

func (s *service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading role")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		if pkgdb.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "role still assigned to users")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting role")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "roles",
		Operation: enums.AuditOperationDelete,
		RecordID:  &id,
		UserID:    &actorID,
		Before:    role,
	})
	return nil
}

func (s *service) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	rows, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing permissions")
	}
	return rows, nil
}

func (s *service) SetPermissions(ctx context.Context, actorID, roleID uuid.UUID, permissionIDs []uuid.UUID) (*models.Role, error) {
	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading role")
	}

	permissions, err := s.repo.FindPermissions(ctx, permissionIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading permissions")
	}
	if len(permissions) != len(permissionIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown permission id in set")
	}

	before := role.Permissions
	if err := s.repo.ReplacePermissions(ctx, role, permissions); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replacing permissions")
	}
	role.Permissions = permissions

	s.auditor.Record(ctx, audit.Entry{
		Table:     "role_permissions",
		Operation: enums.AuditOperationUpdate,
		RecordID:  &role.ID,
		UserID:    &actorID,
		Before:    before,
		After:     permissions,
	})
	return role, nil
}
