package reservations

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

type reservationsRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) (*models.Reservation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.ReservationStatus) error
	CountOverlappingTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID, startsAt, endsAt time.Time, exclude *uuid.UUID) (int64, error)
	CountConfirmedTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID, exclude uuid.UUID) (int64, error)
	List(ctx context.Context, opts listQuery) ([]models.Reservation, error)
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

// Service exposes the reservation lifecycle: create, confirm, use, cancel, list.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Reservation, error)
	Confirm(ctx context.Context, actorID, id uuid.UUID) (*models.Reservation, error)
	MarkUsed(ctx context.Context, actorID, id uuid.UUID) (*models.Reservation, error)
	Cancel(ctx context.Context, actorID, id uuid.UUID) (*models.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (*ListItem, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo    reservationsRepository
	keys    keysRepository
	people  peopleRepository
	tx      txRunner
	auditor auditRecorder
	now     func() time.Time
}

// CreateInput holds the fields required to book a key.
type CreateInput struct {
	KeyID    uuid.UUID
	PersonID uuid.UUID
	StartsAt time.Time
	EndsAt   time.Time
}

// NewService builds the reservation service.
func NewService(repo reservationsRepository, keys keysRepository, people peopleRepository, tx txRunner, auditor auditRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservations repository required")
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

// Create books the key for a future window. Overlapping open reservations on
// the same key are rejected rather than queued.
func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Reservation, error) {
	now := s.now().UTC()
	if !input.StartsAt.Before(input.EndsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start must be before end")
	}
	if input.StartsAt.Before(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start is in the past")
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

	var reservation *models.Reservation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		key, err := s.keys.LockByID(ctx, tx, input.KeyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking key")
		}
		if key.Status == enums.KeyStatusInactive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "key is inactive")
		}

		overlapping, err := s.repo.CountOverlappingTx(ctx, tx, input.KeyID, input.StartsAt, input.EndsAt, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking reservation overlap")
		}
		if overlapping > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "key already reserved for that window")
		}

		created, err := s.repo.CreateTx(ctx, tx, &models.Reservation{
			KeyID:    input.KeyID,
			PersonID: input.PersonID,
			UserID:   actorID,
			StartsAt: input.StartsAt.UTC(),
			EndsAt:   input.EndsAt.UTC(),
			Status:   enums.ReservationStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating reservation")
		}
		reservation = created

		s.auditor.RecordTx(ctx, tx, audit.Entry{
			Table:     "reservations",
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
	return reservation, nil
}

// Confirm moves a pending reservation to C. An available key flips to R so
// nobody loans it out from under the reservation.
func (s *service) Confirm(ctx context.Context, actorID, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, actorID, id,
		func(current enums.ReservationStatus) error {
			if current != enums.ReservationStatusPending {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("reservation is %s; only pending reservations confirm", current))
			}
			return nil
		},
		enums.ReservationStatusConfirmed,
		func(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
			key, err := s.keys.LockByID(ctx, tx, reservation.KeyID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking key")
			}
			if key.Status == enums.KeyStatusAvailable {
				if err := s.keys.UpdateStatusTx(ctx, tx, key.ID, enums.KeyStatusReserved); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking key reserved")
				}
			}
			return nil
		})
}

// MarkUsed moves a confirmed reservation to U once the person picked the key
// up. The key leaves R when no other confirmed reservation holds it.
func (s *service) MarkUsed(ctx context.Context, actorID, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, actorID, id,
		func(current enums.ReservationStatus) error {
			if current != enums.ReservationStatusConfirmed {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("reservation is %s; only confirmed reservations can be used", current))
			}
			return nil
		},
		enums.ReservationStatusUsed,
		s.releaseKeyIfUnheld)
}

// Cancel voids a pending or confirmed reservation.
func (s *service) Cancel(ctx context.Context, actorID, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, actorID, id,
		func(current enums.ReservationStatus) error {
			if !current.IsOpen() {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("reservation is %s; already resolved", current))
			}
			return nil
		},
		enums.ReservationStatusCanceled,
		s.releaseKeyIfUnheld)
}

func (s *service) transition(
	ctx context.Context,
	actorID, id uuid.UUID,
	guard func(current enums.ReservationStatus) error,
	target enums.ReservationStatus,
	after func(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error,
) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking reservation")
		}
		if err := guard(locked.Status); err != nil {
			return err
		}

		if err := s.repo.UpdateStatusTx(ctx, tx, id, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating reservation status")
		}

		before := *locked
		locked.Status = target
		if after != nil {
			if err := after(ctx, tx, locked); err != nil {
				return err
			}
		}
		reservation = locked

		s.auditor.RecordTx(ctx, tx, audit.Entry{
			Table:     "reservations",
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
	return reservation, nil
}

// releaseKeyIfUnheld drops a reserved key back to D unless another confirmed
// reservation still holds it. Loaned and inactive keys are left alone.
func (s *service) releaseKeyIfUnheld(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	key, err := s.keys.LockByID(ctx, tx, reservation.KeyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking key")
	}
	if key.Status != enums.KeyStatusReserved {
		return nil
	}

	confirmed, err := s.repo.CountConfirmedTx(ctx, tx, key.ID, reservation.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting confirmed reservations")
	}
	if confirmed > 0 {
		return nil
	}
	if err := s.keys.UpdateStatusTx(ctx, tx, key.ID, enums.KeyStatusAvailable); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing key")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ListItem, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading reservation")
	}
	item := toListItem(*reservation)
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing reservations")
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
