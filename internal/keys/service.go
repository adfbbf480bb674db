package keys

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

const historyLimit = 10

type keysRepository interface {
	Create(ctx context.Context, key *models.Key) (*models.Key, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Key, error)
	FindByCode(ctx context.Context, code string) (*models.Key, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Key, error)
	List(ctx context.Context, opts listQuery) ([]models.Key, error)
	Update(ctx context.Context, key *models.Key) error
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.KeyStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	HasActiveLoanTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID) (bool, error)
	HasOpenReservationTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID) (bool, error)
	RecentLoans(ctx context.Context, keyID uuid.UUID, limit int) ([]models.Loan, error)
	RecentReservations(ctx context.Context, keyID uuid.UUID, limit int) ([]models.Reservation, error)
	AuthorizedPeople(ctx context.Context, keyID uuid.UUID) ([]models.AuthorizedPerson, error)
	AddAuthorized(ctx context.Context, row *models.AuthorizedPerson) error
	RemoveAuthorized(ctx context.Context, keyID, personID uuid.UUID) error
}

type facilitiesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Facility, error)
}

type peopleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
	RecordTx(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// Service exposes key CRUD, the status toggle, and authorization management.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Key, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input UpdateInput) (*models.Key, error)
	ChangeStatus(ctx context.Context, actorID, id uuid.UUID, target enums.KeyStatus) (*models.Key, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
	Authorize(ctx context.Context, actorID, keyID, personID uuid.UUID) error
	RevokeAuthorization(ctx context.Context, actorID, keyID, personID uuid.UUID) error
}

type service struct {
	repo       keysRepository
	facilities facilitiesRepository
	people     peopleRepository
	tx         txRunner
	auditor    auditRecorder
}

// CreateInput holds the fields accepted when registering a key.
type CreateInput struct {
	Code       string
	NumCopies  int
	FacilityID uuid.UUID
	IsMaster   bool
	Notes      *string
}

// UpdateInput holds the mutable key fields. Status is absent on purpose:
// it only moves through ChangeStatus and the loan/reservation flows.
type UpdateInput struct {
	Code       string
	NumCopies  int
	FacilityID uuid.UUID
	IsMaster   bool
	Notes      *string
}

// NewService builds the key service.
func NewService(repo keysRepository, facilities facilitiesRepository, people peopleRepository, tx txRunner, auditor auditRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("keys repository required")
	}
	if facilities == nil {
		return nil, fmt.Errorf("facilities repository required")
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
		repo:       repo,
		facilities: facilities,
		people:     people,
		tx:         tx,
		auditor:    auditor,
	}, nil
}

// NormalizeCode trims and uppercases a key code so lookups and the unique
// index treat "lab-01" and "LAB-01" as the same key.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Key, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "key code is required")
	}
	if input.NumCopies < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "num_copies must be at least 1")
	}

	facility, err := s.facilities.FindByID(ctx, input.FacilityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading facility")
	}
	if facility.Status != enums.RecordStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "facility is inactive")
	}

	if _, err := s.repo.FindByCode(ctx, code); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("key code %q already exists", code))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking key code")
	}

	key := &models.Key{
		Code:       code,
		NumCopies:  input.NumCopies,
		FacilityID: input.FacilityID,
		IsMaster:   input.IsMaster,
		Status:     enums.KeyStatusAvailable,
		Notes:      input.Notes,
	}

	created, err := s.repo.Create(ctx, key)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_keys_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("key code %q already exists", code))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating key")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "keys",
		Operation: enums.AuditOperationInsert,
		RecordID:  &created.ID,
		UserID:    &actorID,
		After:     created,
	})
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	key, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading key")
	}

	loans, err := s.repo.RecentLoans(ctx, id, historyLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading key loans")
	}
	reservations, err := s.repo.RecentReservations(ctx, id, historyLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading key reservations")
	}
	authorized, err := s.repo.AuthorizedPeople(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading authorized people")
	}

	detail := &Detail{
		Key:          toListItem(*key),
		Facility:     toFacilityView(key.Facility),
		Loans:        make([]LoanView, 0, len(loans)),
		Reservations: make([]ReservationView, 0, len(reservations)),
		Authorized:   make([]AuthorizedView, 0, len(authorized)),
	}
	for _, loan := range loans {
		detail.Loans = append(detail.Loans, toLoanView(loan))
	}
	for _, reservation := range reservations {
		detail.Reservations = append(detail.Reservations, toReservationView(reservation))
	}
	for _, row := range authorized {
		detail.Authorized = append(detail.Authorized, toAuthorizedView(row))
	}
	return detail, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, listQuery{
		status:     params.Status,
		facilityID: params.FacilityID,
		search:     NormalizeCode(params.Search),
		limit:      pkgpagination.LimitWithBuffer(params.Limit),
		cursor:     cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing keys")
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

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateInput) (*models.Key, error) {
	key, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading key")
	}

	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "key code is required")
	}
	if input.NumCopies < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "num_copies must be at least 1")
	}
	if code != key.Code {
		if _, err := s.repo.FindByCode(ctx, code); err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("key code %q already exists", code))
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking key code")
		}
	}
	if input.FacilityID != key.FacilityID {
		facility, err := s.facilities.FindByID(ctx, input.FacilityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading facility")
		}
		if facility.Status != enums.RecordStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "facility is inactive")
		}
	}

	before := *key
	key.Code = code
	key.NumCopies = input.NumCopies
	key.FacilityID = input.FacilityID
	key.IsMaster = input.IsMaster
	key.Notes = input.Notes
	key.Facility = nil

	if err := s.repo.Update(ctx, key); err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_keys_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("key code %q already exists", code))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating key")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "keys",
		Operation: enums.AuditOperationUpdate,
		RecordID:  &key.ID,
		UserID:    &actorID,
		Before:    before,
		After:     key,
	})
	return key, nil
}

// ChangeStatus toggles a key between circulation and inactive. Loaned keys
// never change status here; that flows through the loan operations.
func (s *service) ChangeStatus(ctx context.Context, actorID, id uuid.UUID, target enums.KeyStatus) (*models.Key, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid key status %q", target))
	}
	if target != enums.KeyStatusAvailable && target != enums.KeyStatusInactive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only D and I can be set directly")
	}

	var updated *models.Key
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		key, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking key")
		}

		if key.Status == target {
			updated = key
			return nil
		}
		if key.Status == enums.KeyStatusLoaned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "key is on loan; close the loan first")
		}

		switch target {
		case enums.KeyStatusAvailable:
			if key.Status != enums.KeyStatusInactive {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot move key from %s to D directly", key.Status))
			}
		case enums.KeyStatusInactive:
			activeLoan, err := s.repo.HasActiveLoanTx(ctx, tx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking active loans")
			}
			if activeLoan {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "key has an active loan")
			}
			openReservation, err := s.repo.HasOpenReservationTx(ctx, tx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking open reservations")
			}
			if openReservation {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "key has a pending or confirmed reservation")
			}
		}

		before := *key
		if err := s.repo.UpdateStatusTx(ctx, tx, id, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating key status")
		}
		key.Status = target
		updated = key

		s.auditor.RecordTx(ctx, tx, audit.Entry{
			Table:     "keys",
			Operation: enums.AuditOperationUpdate,
			RecordID:  &key.ID,
			UserID:    &actorID,
			Before:    before,
			After:     key,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	key, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading key")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
		}
		if pkgdb.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "key has loan or reservation history")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting key")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "keys",
		Operation: enums.AuditOperationDelete,
		RecordID:  &id,
		UserID:    &actorID,
		Before:    key,
	})
	return nil
}

func (s *service) Authorize(ctx context.Context, actorID, keyID, personID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, keyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "key not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading key")
	}
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading person")
	}
	if person.Status != enums.RecordStatusActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "person is inactive")
	}

	row := &models.AuthorizedPerson{PersonID: personID, KeyID: keyID}
	if err := s.repo.AddAuthorized(ctx, row); err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_authorized_person_key") {
			return pkgerrors.New(pkgerrors.CodeConflict, "person already authorized for this key")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adding authorization")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "authorized_people",
		Operation: enums.AuditOperationInsert,
		RecordID:  &row.ID,
		UserID:    &actorID,
		After:     row,
	})
	return nil
}

func (s *service) RevokeAuthorization(ctx context.Context, actorID, keyID, personID uuid.UUID) error {
	if err := s.repo.RemoveAuthorized(ctx, keyID, personID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "authorization not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing authorization")
	}

	s.auditor.Record(ctx, audit.Entry{
		Table:     "authorized_people",
		Operation: enums.AuditOperationDelete,
		RecordID:  &keyID,
		UserID:    &actorID,
	})
	return nil
}
