package keys

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/keyward-backend/internal/audit"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
)

type stubKeysRepo struct {
	byID            map[uuid.UUID]*models.Key
	byCode          map[string]*models.Key
	created         *models.Key
	createErr       error
	deleteErr       error
	statusWrites    []enums.KeyStatus
	activeLoan      bool
	openReservation bool
	authorizedRows  []*models.AuthorizedPerson
	addAuthErr      error
	removeAuthErr   error
}

func newStubKeysRepo(rows ...*models.Key) *stubKeysRepo {
	repo := &stubKeysRepo{
		byID:   map[uuid.UUID]*models.Key{},
		byCode: map[string]*models.Key{},
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		repo.byID[row.ID] = row
		repo.byCode[row.Code] = row
	}
	return repo
}

func (s *stubKeysRepo) Create(ctx context.Context, key *models.Key) (*models.Key, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	key.ID = uuid.New()
	s.created = key
	s.byID[key.ID] = key
	s.byCode[key.Code] = key
	return key, nil
}

func (s *stubKeysRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Key, error) {
	if row, ok := s.byID[id]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubKeysRepo) FindByCode(ctx context.Context, code string) (*models.Key, error) {
	if row, ok := s.byCode[code]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubKeysRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Key, error) {
	return s.FindByID(ctx, id)
}

func (s *stubKeysRepo) List(ctx context.Context, opts listQuery) ([]models.Key, error) {
	rows := make([]models.Key, 0, len(s.byID))
	for _, row := range s.byID {
		rows = append(rows, *row)
	}
	return rows, nil
}

func (s *stubKeysRepo) Update(ctx context.Context, key *models.Key) error {
	s.byID[key.ID] = key
	return nil
}

func (s *stubKeysRepo) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.KeyStatus) error {
	s.statusWrites = append(s.statusWrites, status)
	if row, ok := s.byID[id]; ok {
		row.Status = status
	}
	return nil
}

func (s *stubKeysRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *stubKeysRepo) HasActiveLoanTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID) (bool, error) {
	return s.activeLoan, nil
}

func (s *stubKeysRepo) HasOpenReservationTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID) (bool, error) {
	return s.openReservation, nil
}

func (s *stubKeysRepo) RecentLoans(ctx context.Context, keyID uuid.UUID, limit int) ([]models.Loan, error) {
	return nil, nil
}

func (s *stubKeysRepo) RecentReservations(ctx context.Context, keyID uuid.UUID, limit int) ([]models.Reservation, error) {
	return nil, nil
}

func (s *stubKeysRepo) AuthorizedPeople(ctx context.Context, keyID uuid.UUID) ([]models.AuthorizedPerson, error) {
	return nil, nil
}

func (s *stubKeysRepo) AddAuthorized(ctx context.Context, row *models.AuthorizedPerson) error {
	if s.addAuthErr != nil {
		return s.addAuthErr
	}
	row.ID = uuid.New()
	s.authorizedRows = append(s.authorizedRows, row)
	return nil
}

func (s *stubKeysRepo) RemoveAuthorized(ctx context.Context, keyID, personID uuid.UUID) error {
	return s.removeAuthErr
}

type stubFacilitiesRepo struct {
	facility *models.Facility
}

func (s *stubFacilitiesRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	if s.facility == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.facility, nil
}

type stubPeopleRepo struct {
	person *models.Person
}

func (s *stubPeopleRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	if s.person == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.person, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (r *recordingAuditor) Record(ctx context.Context, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingAuditor) RecordTx(ctx context.Context, tx *gorm.DB, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func newServiceForTests(repo *stubKeysRepo, facility *models.Facility, person *models.Person) (Service, *recordingAuditor) {
	if repo == nil {
		repo = newStubKeysRepo()
	}
	if facility == nil {
		facility = &models.Facility{ID: uuid.New(), Status: enums.RecordStatusActive}
	}
	auditor := &recordingAuditor{}
	svc, err := NewService(repo, &stubFacilitiesRepo{facility: facility}, &stubPeopleRepo{person: person}, fakeTxRunner{}, auditor)
	if err != nil {
		panic(err)
	}
	return svc, auditor
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestCreateKeyNormalizesCodeAndStartsAvailable(t *testing.T) {
	repo := newStubKeysRepo()
	svc, auditor := newServiceForTests(repo, nil, nil)

	key, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Code:       "  lab-01 ",
		NumCopies:  2,
		FacilityID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if key.Code != "LAB-01" {
		t.Fatalf("expected normalized code LAB-01, got %q", key.Code)
	}
	if key.Status != enums.KeyStatusAvailable {
		t.Fatalf("expected new key to be available, got %s", key.Status)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Operation != enums.AuditOperationInsert {
		t.Fatalf("expected one insert audit entry, got %+v", auditor.entries)
	}
}

func TestCreateKeyDuplicateCodeCaseInsensitive(t *testing.T) {
	repo := newStubKeysRepo(&models.Key{Code: "LAB-01", NumCopies: 1, Status: enums.KeyStatusAvailable})
	svc, _ := newServiceForTests(repo, nil, nil)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Code:       "lab-01",
		NumCopies:  1,
		FacilityID: uuid.New(),
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateKeyInactiveFacility(t *testing.T) {
	facility := &models.Facility{ID: uuid.New(), Status: enums.RecordStatusInactive}
	svc, _ := newServiceForTests(nil, facility, nil)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Code:       "K-1",
		NumCopies:  1,
		FacilityID: facility.ID,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestChangeStatusLoanedKeyBlocked(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusLoaned}
	repo := newStubKeysRepo(key)
	svc, _ := newServiceForTests(repo, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), key.ID, enums.KeyStatusInactive)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestChangeStatusSameStatusIsNoOp(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	svc, auditor := newServiceForTests(repo, nil, nil)

	updated, err := svc.ChangeStatus(context.Background(), uuid.New(), key.ID, enums.KeyStatusAvailable)
	if err != nil {
		t.Fatalf("ChangeStatus returned error: %v", err)
	}
	if updated.Status != enums.KeyStatusAvailable {
		t.Fatalf("expected status unchanged, got %s", updated.Status)
	}
	if len(repo.statusWrites) != 0 {
		t.Fatalf("expected no status writes, got %v", repo.statusWrites)
	}
	if len(auditor.entries) != 0 {
		t.Fatalf("expected no audit entries for a no-op, got %d", len(auditor.entries))
	}
}

func TestChangeStatusRejectsLoanedTarget(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	svc, _ := newServiceForTests(repo, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), key.ID, enums.KeyStatusLoaned)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestChangeStatusDeactivateBlockedByActiveLoan(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	repo.activeLoan = true
	svc, _ := newServiceForTests(repo, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), key.ID, enums.KeyStatusInactive)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestChangeStatusDeactivateBlockedByOpenReservation(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusReserved}
	repo := newStubKeysRepo(key)
	repo.openReservation = true
	svc, _ := newServiceForTests(repo, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), key.ID, enums.KeyStatusInactive)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestChangeStatusDeactivateThenReactivate(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	svc, auditor := newServiceForTests(repo, nil, nil)
	actorID := uuid.New()

	updated, err := svc.ChangeStatus(context.Background(), actorID, key.ID, enums.KeyStatusInactive)
	if err != nil {
		t.Fatalf("deactivate returned error: %v", err)
	}
	if updated.Status != enums.KeyStatusInactive {
		t.Fatalf("expected inactive, got %s", updated.Status)
	}

	updated, err = svc.ChangeStatus(context.Background(), actorID, key.ID, enums.KeyStatusAvailable)
	if err != nil {
		t.Fatalf("reactivate returned error: %v", err)
	}
	if updated.Status != enums.KeyStatusAvailable {
		t.Fatalf("expected available, got %s", updated.Status)
	}
	if len(auditor.entries) != 2 {
		t.Fatalf("expected two audit entries, got %d", len(auditor.entries))
	}
}

func TestChangeStatusReservedToAvailableBlocked(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusReserved}
	repo := newStubKeysRepo(key)
	svc, _ := newServiceForTests(repo, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), uuid.New(), key.ID, enums.KeyStatusAvailable)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestDeleteKeyWithHistoryConflict(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	repo.deleteErr = errors.New(`update or delete on table "keys" violates foreign key constraint "fk_loans_key"`)
	svc, _ := newServiceForTests(repo, nil, nil)

	err := svc.Delete(context.Background(), uuid.New(), key.ID)
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestAuthorizeInactivePerson(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	person := &models.Person{ID: uuid.New(), Status: enums.RecordStatusInactive}
	svc, _ := newServiceForTests(repo, nil, person)

	err := svc.Authorize(context.Background(), uuid.New(), key.ID, person.ID)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestAuthorizeDuplicate(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	repo.addAuthErr = errors.New(`duplicate key value violates unique constraint "idx_authorized_person_key"`)
	person := &models.Person{ID: uuid.New(), Status: enums.RecordStatusActive}
	svc, _ := newServiceForTests(repo, nil, person)

	err := svc.Authorize(context.Background(), uuid.New(), key.ID, person.ID)
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestAuthorizationAuditUsesStoredTableName(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubKeysRepo(key)
	person := &models.Person{ID: uuid.New(), Status: enums.RecordStatusActive}
	svc, auditor := newServiceForTests(repo, nil, person)

	if err := svc.Authorize(context.Background(), uuid.New(), key.ID, person.ID); err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if err := svc.RevokeAuthorization(context.Background(), uuid.New(), key.ID, person.ID); err != nil {
		t.Fatalf("RevokeAuthorization returned error: %v", err)
	}

	if len(auditor.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(auditor.entries))
	}
	for _, entry := range auditor.entries {
		if entry.Table != "authorized_people" {
			t.Fatalf("audit table must match the authorized_people table, got %q", entry.Table)
		}
	}
}
