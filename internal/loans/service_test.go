package loans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/keyward-backend/internal/audit"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
)

type stubLoansRepo struct {
	loans     map[uuid.UUID]*models.Loan
	created   *models.Loan
	closedAs  enums.LoanStatus
	canceled  bool
	createErr error
}

func newStubLoansRepo(rows ...*models.Loan) *stubLoansRepo {
	repo := &stubLoansRepo{loans: map[uuid.UUID]*models.Loan{}}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		repo.loans[row.ID] = row
	}
	return repo
}

func (s *stubLoansRepo) CreateTx(ctx context.Context, tx *gorm.DB, loan *models.Loan) (*models.Loan, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	loan.ID = uuid.New()
	s.created = loan
	s.loans[loan.ID] = loan
	return loan, nil
}

func (s *stubLoansRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	if row, ok := s.loans[id]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLoansRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	return s.FindByID(ctx, id)
}

func (s *stubLoansRepo) CloseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.LoanStatus, returnedAt time.Time) error {
	s.closedAs = status
	return nil
}

func (s *stubLoansRepo) CancelTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	s.canceled = true
	return nil
}

func (s *stubLoansRepo) List(ctx context.Context, opts listQuery) ([]models.Loan, error) {
	rows := make([]models.Loan, 0, len(s.loans))
	for _, row := range s.loans {
		rows = append(rows, *row)
	}
	return rows, nil
}

type stubKeysRepo struct {
	keys         map[uuid.UUID]*models.Key
	statusWrites []enums.KeyStatus
}

func newStubKeysRepo(rows ...*models.Key) *stubKeysRepo {
	repo := &stubKeysRepo{keys: map[uuid.UUID]*models.Key{}}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		repo.keys[row.ID] = row
	}
	return repo
}

func (s *stubKeysRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Key, error) {
	if row, ok := s.keys[id]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubKeysRepo) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.KeyStatus) error {
	s.statusWrites = append(s.statusWrites, status)
	if row, ok := s.keys[id]; ok {
		row.Status = status
	}
	return nil
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

func (r *recordingAuditor) RecordTx(ctx context.Context, tx *gorm.DB, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func newServiceForTests(t *testing.T, loansRepo *stubLoansRepo, keysRepo *stubKeysRepo, person *models.Person, at time.Time) Service {
	t.Helper()
	if person == nil {
		person = &models.Person{ID: uuid.New(), Status: enums.RecordStatusActive}
	}
	svc, err := NewService(loansRepo, keysRepo, &stubPeopleRepo{person: person}, fakeTxRunner{}, &recordingAuditor{})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if !at.IsZero() {
		svc.(*service).now = func() time.Time { return at }
	}
	return svc
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

func TestOpenLoanMarksKeyLoaned(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	keysRepo := newStubKeysRepo(key)
	loansRepo := newStubLoansRepo()
	svc := newServiceForTests(t, loansRepo, keysRepo, nil, time.Time{})

	due := time.Now().UTC().Add(24 * time.Hour)
	loan, err := svc.Open(context.Background(), uuid.New(), OpenInput{
		KeyID:    key.ID,
		PersonID: uuid.New(),
		DueAt:    &due,
	})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if loan.Status != enums.LoanStatusActive {
		t.Fatalf("expected active loan, got %s", loan.Status)
	}
	if key.Status != enums.KeyStatusLoaned {
		t.Fatalf("expected key loaned, got %s", key.Status)
	}
}

func TestOpenLoanRejectsUnavailableKey(t *testing.T) {
	for _, status := range []enums.KeyStatus{enums.KeyStatusLoaned, enums.KeyStatusReserved, enums.KeyStatusInactive} {
		key := &models.Key{Code: "K-1", Status: status}
		keysRepo := newStubKeysRepo(key)
		svc := newServiceForTests(t, newStubLoansRepo(), keysRepo, nil, time.Time{})

		_, err := svc.Open(context.Background(), uuid.New(), OpenInput{
			KeyID:    key.ID,
			PersonID: uuid.New(),
		})
		assertCode(t, err, pkgerrors.CodeConflict)
	}
}

func TestOpenLoanRejectsPastDueDate(t *testing.T) {
	svc := newServiceForTests(t, newStubLoansRepo(), newStubKeysRepo(), nil, time.Time{})

	due := time.Now().UTC().Add(-time.Hour)
	_, err := svc.Open(context.Background(), uuid.New(), OpenInput{
		KeyID:    uuid.New(),
		PersonID: uuid.New(),
		DueAt:    &due,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestOpenLoanRejectsInactivePerson(t *testing.T) {
	person := &models.Person{ID: uuid.New(), Status: enums.RecordStatusInactive}
	svc := newServiceForTests(t, newStubLoansRepo(), newStubKeysRepo(), person, time.Time{})

	_, err := svc.Open(context.Background(), uuid.New(), OpenInput{
		KeyID:    uuid.New(),
		PersonID: person.ID,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCloseLoanOnTimeReturnsD(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(2 * time.Hour)
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusLoaned}
	keysRepo := newStubKeysRepo(key)
	loan := &models.Loan{KeyID: key.ID, Status: enums.LoanStatusActive, DueAt: &due}
	loansRepo := newStubLoansRepo(loan)
	svc := newServiceForTests(t, loansRepo, keysRepo, nil, now)

	closed, err := svc.Close(context.Background(), uuid.New(), loan.ID)
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if closed.Status != enums.LoanStatusReturned {
		t.Fatalf("expected returned status, got %s", closed.Status)
	}
	if key.Status != enums.KeyStatusAvailable {
		t.Fatalf("expected key available, got %s", key.Status)
	}
}

func TestCloseLoanLateClosesOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusLoaned}
	keysRepo := newStubKeysRepo(key)
	loan := &models.Loan{KeyID: key.ID, Status: enums.LoanStatusActive, DueAt: &due}
	loansRepo := newStubLoansRepo(loan)
	svc := newServiceForTests(t, loansRepo, keysRepo, nil, now)

	closed, err := svc.Close(context.Background(), uuid.New(), loan.ID)
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if closed.Status != enums.LoanStatusOverdue {
		t.Fatalf("expected overdue status, got %s", closed.Status)
	}
	if loansRepo.closedAs != enums.LoanStatusOverdue {
		t.Fatalf("expected overdue persisted, got %s", loansRepo.closedAs)
	}
	if key.Status != enums.KeyStatusAvailable {
		t.Fatalf("expected key available after late return, got %s", key.Status)
	}
}

func TestCloseLoanNonActiveNotFound(t *testing.T) {
	loan := &models.Loan{KeyID: uuid.New(), Status: enums.LoanStatusReturned}
	loansRepo := newStubLoansRepo(loan)
	svc := newServiceForTests(t, loansRepo, newStubKeysRepo(), nil, time.Time{})

	_, err := svc.Close(context.Background(), uuid.New(), loan.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCancelLoanReleasesKey(t *testing.T) {
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusLoaned}
	keysRepo := newStubKeysRepo(key)
	loan := &models.Loan{KeyID: key.ID, Status: enums.LoanStatusActive}
	loansRepo := newStubLoansRepo(loan)
	svc := newServiceForTests(t, loansRepo, keysRepo, nil, time.Time{})

	canceled, err := svc.Cancel(context.Background(), uuid.New(), loan.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if canceled.Status != enums.LoanStatusCanceled {
		t.Fatalf("expected canceled status, got %s", canceled.Status)
	}
	if !loansRepo.canceled {
		t.Fatal("expected cancel persisted")
	}
	if key.Status != enums.KeyStatusAvailable {
		t.Fatalf("expected key available after cancel, got %s", key.Status)
	}
}

func TestCancelLoanNonActiveStateConflict(t *testing.T) {
	loan := &models.Loan{KeyID: uuid.New(), Status: enums.LoanStatusCanceled}
	loansRepo := newStubLoansRepo(loan)
	svc := newServiceForTests(t, loansRepo, newStubKeysRepo(), nil, time.Time{})

	_, err := svc.Cancel(context.Background(), uuid.New(), loan.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}
