package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/internal/audit"
	"github.com/keyward/keyward-backend/pkg/config"
	pkgdb "github.com/keyward/keyward-backend/pkg/db"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
	"github.com/keyward/keyward-backend/pkg/security"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type usersRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, opts listQuery) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type peopleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
}

type rolesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service exposes user account management.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*ListItem, error)
	Get(ctx context.Context, id uuid.UUID) (*ListItem, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input UpdateInput) (*ListItem, error)
	ChangePassword(ctx context.Context, actorID, id uuid.UUID, password string) error
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

type service struct {
	repo        usersRepository
	people      peopleRepository
	roles       rolesRepository
	auditor     auditRecorder
	passwordCfg config.PasswordConfig
}

// CreateInput holds the fields accepted when opening an account.
type CreateInput struct {
	Username   string
	Password   string
	PersonID   uuid.UUID
	RoleID     uuid.UUID
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// UpdateInput holds the mutable account fields. Password changes go through
// ChangePassword.
type UpdateInput struct {
	RoleID     uuid.UUID
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Status     enums.UserStatus
}

// NewService builds the user service.
func NewService(repo usersRepository, people peopleRepository, roles rolesRepository, auditor auditRecorder, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if people == nil {
		return nil, fmt.Errorf("people repository required")
	}
	if roles == nil {
		return nil, fmt.Errorf("roles repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		repo:        repo,
		people:      people,
		roles:       roles,
		auditor:     auditor,
		passwordCfg: passwordCfg,
	}, nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*ListItem, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidFrom.Before(*input.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_from must precede valid_until")
	}

	if _, err := s.people.FindByID(ctx, input.PersonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading person")
	}
	if _, err := s.roles.FindByID(ctx, input.RoleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading role")
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("username %q already taken", username))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking username")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	created, err := s.repo.Create(ctx, &models.User{
		PersonID:     input.PersonID,
		RoleID:       input.RoleID,
		Username:     username,
		PasswordHash: hash,
		ValidFrom:    input.ValidFrom,
		ValidUntil:   input.ValidUntil,
		Status:       enums.UserStatusActive,
	})
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_users_username") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("username %q already taken", username))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "users",
		Operation: enums.AuditOperationInsert,
		RecordID:  &created.ID,
		UserID:    &actorID,
		After:     toListItem(*created),
	})
	item := toListItem(*created)
	return &item, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ListItem, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	item := toListItem(*user)
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
		roleID: params.RoleID,
		search: strings.ToLower(strings.TrimSpace(params.Search)),
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
		cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing users")
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

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateInput) (*ListItem, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Status))
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidFrom.Before(*input.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_from must precede valid_until")
	}
	if input.RoleID != user.RoleID {
		if _, err := s.roles.FindByID(ctx, input.RoleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading role")
		}
	}

	before := toListItem(*user)
	user.RoleID = input.RoleID
	user.ValidFrom = input.ValidFrom
	user.ValidUntil = input.ValidUntil
	user.Status = input.Status
	user.Person = nil
	user.Role = nil

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating user")
	}

	item := toListItem(*user)
	s.auditor.Record(ctx, audit.Entry{
		Table:     "users",
		Operation: enums.AuditOperationUpdate,
		RecordID:  &user.ID,
		UserID:    &actorID,
		Before:    before,
		After:     item,
	})
	return &item, nil
}

func (s *service) ChangePassword(ctx context.Context, actorID, id uuid.UUID, password string) error {
	if len(password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}

	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}
	user.PasswordHash = hash
	user.Person = nil
	user.Role = nil
	if err := s.repo.Update(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating password")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "users",
		Operation: enums.AuditOperationUpdate,
		RecordID:  &user.ID,
		UserID:    &actorID,
	})
	return nil
}

func (s *service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		if pkgdb.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "user has loan history")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting user")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "users",
		Operation: enums.AuditOperationDelete,
		RecordID:  &id,
		UserID:    &actorID,
		Before:    toListItem(*user),
	})
	return nil
}
