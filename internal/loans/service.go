package loans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/internal/audit"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
	"gorm.io/gorm"
)

type loansRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, loan *models.Loan) (*models.Loan, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Loan, error)
	CloseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.LoanStatus, returnedAt time.Time) error
	CancelTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	List(ctx context.Context, opts listQuery) ([]models.Loan, error)
}

type keysRepository interface {
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Key, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.KeyStatus) error
}

type peopleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	RecordTx(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// Service exposes the loan lifecycle: open, return, cancel, list.
type Service interface {
	Open(ctx context.Context, actorID uuid.UUID, input OpenInput) (*models.Loan, error)
	Close(ctx context.Context, actorID, loanID uuid.UUID) (*models.Loan, error)
	Cancel(ctx context.Context, actorID, loanID uuid.UUID) (*models.Loan, error)
	Get(ctx context.Context, id uuid.UUID) (*ListItem, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo    loansRepository
	keys    keysRepository
	people  peopleRepository
	tx      txRunner
	auditor auditRecorder
	now     func() time.Time
}

// OpenInput holds the fields required to hand a key out.
type OpenInput struct {
	KeyID    uuid.UUID
	PersonID uuid.UUID
	DueAt    *time.Time
	Notes    *string
}

// NewService builds the loan service.
func NewService(repo loansRepository, keys keysRepository, people peopleRepository, tx txRunner, auditor auditRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loans repository required")
	}
	if keys == nil {
		return nil, fmt.Errorf("keys repository required")
	}
	if people == nil {
		return nil, fmt.Errorf("people repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		repo:    repo,
		keys:    keys,
		people:  people,
		tx:      tx,
		auditor: auditor,
		now:     time.Now,
	}, nil
}

// Open hands the key to a person. The key row is locked for the duration of
// the transaction so a concurrent open on the same key observes status P and
// fails with CONFLICT.
func (s *service) Open(ctx context.Context, actorID uuid.UUID, input OpenInput) (*models.Loan, error) {
	now := s.now().UTC()
	if input.DueAt != nil && input.DueAt.Before(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date is in the past")
	}

	person, err := s.people.FindByID(ctx, input.PersonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading person")
	}
	if person.Status != enums.RecordStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "person is inactive")
	}

	var loan *models.Loan
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		key, err := s.keys.LockByID(ctx, tx, input.KeyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking key")
		}
		if key.Status != enums.KeyStatusAvailable {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("key %s is not available (status %s)", key.Code, key.Status))
		}

		created, err := s.repo.CreateTx(ctx, tx, &models.Loan{
			KeyID:    input.KeyID,
			PersonID: input.PersonID,
			UserID:   actorID,
			LoanedAt: now,
			DueAt:    input.DueAt,
			Status:   enums.LoanStatusActive,
			Notes:    input.Notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating loan")
		}
		if err := s.keys.UpdateStatusTx(ctx, tx, input.KeyID, enums.KeyStatusLoaned); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking key loaned")
		}
		loan = created

		s.auditor.RecordTx(ctx, tx, audit.Entry{
			Table:     "loans",
			Operation: enums.AuditOperationInsert,
			RecordID:  &created.ID,
			UserID:    &actorID,
			After:     created,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Close records the return. Late returns close as V instead of D; the key
// goes back to D either way.
func (s *service) Close(ctx context.Context, actorID, loanID uuid.UUID) (*models.Loan, error) {
	returnedAt := s.now().UTC()

	var loan *models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.LockByID(ctx, tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "active loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking loan")
		}
		if locked.Status != enums.LoanStatusActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "active loan not found")
		}

		status := enums.LoanStatusReturned
		if locked.DueAt != nil && returnedAt.After(*locked.DueAt) {
			status = enums.LoanStatusOverdue
		}

		if err := s.repo.CloseTx(ctx, tx, loanID, status, returnedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "closing loan")
		}
		if _, err := s.keys.LockByID(ctx, tx, locked.KeyID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking key")
		}
		if err := s.keys.UpdateStatusTx(ctx, tx, locked.KeyID, enums.KeyStatusAvailable); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing key")
		}

		before := *locked
		locked.Status = status
		locked.ReturnedAt = &returnedAt
		loan = locked

		s.auditor.RecordTx(ctx, tx, audit.Entry{
			Table:     "loans",
			Operation: enums.AuditOperationUpdate,
			RecordID:  &locked.ID,
			UserID:    &actorID,
			Before:    before,
			After:     locked,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Cancel voids a loan opened by mistake. Only active loans cancel; the key
// returns to D.
func (s *service) Cancel(ctx context.Context, actorID, loanID uuid.UUID) (*models.Loan, error) {
	var loan *models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.LockByID(ctx, tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking loan")
		}
		if locked.Status != enums.LoanStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("loan is %s; only active loans cancel", locked.Status))
		}

		if err := s.repo.CancelTx(ctx, tx, loanID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "canceling loan")
		}
		if _, err := s.keys.LockByID(ctx, tx, locked.KeyID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking key")
		}
		if err := s.keys.UpdateStatusTx(ctx, tx, locked.KeyID, enums.KeyStatusAvailable); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing key")
		}

		before := *locked
		locked.Status = enums.LoanStatusCanceled
		loan = locked

		s.auditor.RecordTx(ctx, tx, audit.Entry{
			Table:     "loans",
			Operation: enums.AuditOperationUpdate,
			RecordID:  &locked.ID,
			UserID:    &actorID,
			Before:    before,
			After:     locked,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ListItem, error) {
	loan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading loan")
	}
	item := toListItem(*loan)
	return &item, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, listQuery{
		keyID:    params.KeyID,
		personID: params.PersonID,
		status:   params.Status,
		limit:    pkgpagination.LimitWithBuffer(params.Limit),
		cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing loans")
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
