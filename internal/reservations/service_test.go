package reservations

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

type stubReservationsRepo struct {
	rows        map[uuid.UUID]*models.Reservation
	created     *models.Reservation
	overlapping int64
	confirmed   int64
}

func newStubReservationsRepo(rows ...*models.Reservation) *stubReservationsRepo {
	repo := &stubReservationsRepo{rows: map[uuid.UUID]*models.Reservation{}}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		repo.rows[row.ID] = row
	}
	return repo
}

func (s *stubReservationsRepo) CreateTx(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) (*models.Reservation, error) {
	reservation.ID = uuid.New()
	s.created = reservation
	s.rows[reservation.ID] = reservation
	return reservation, nil
}

func (s *stubReservationsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if row, ok := s.rows[id]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubReservationsRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	return s.FindByID(ctx, id)
}

func (s *stubReservationsRepo) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.ReservationStatus) error {
	if row, ok := s.rows[id]; ok {
		row.Status = status
	}
	return nil
}

func (s *stubReservationsRepo) CountOverlappingTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID, startsAt, endsAt time.Time, exclude *uuid.UUID) (int64, error) {
	return s.overlapping, nil
}

func (s *stubReservationsRepo) CountConfirmedTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID, exclude uuid.UUID) (int64, error) {
	return s.confirmed, nil
}

func (s *stubReservationsRepo) List(ctx context.Context, opts listQuery) ([]models.Reservation, error) {
	rows := make([]models.Reservation, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, *row)
	}
	return rows, nil
}

type stubKeysRepo struct {
	keys map[uuid.UUID]*models.Key
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

type noopAuditor struct{}

func (noopAuditor) RecordTx(ctx context.Context, tx *gorm.DB, entry audit.Entry) {}

func newServiceForTests(t *testing.T, repo *stubReservationsRepo, keysRepo *stubKeysRepo, at time.Time) Service {
	t.Helper()
	person := &models.Person{ID: uuid.New(), Status: enums.RecordStatusActive}
	svc, err := NewService(repo, keysRepo, &stubPeopleRepo{person: person}, fakeTxRunner{}, noopAuditor{})
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

func testWindow(now time.Time) (time.Time, time.Time) {
	return now.Add(time.Hour), now.Add(3 * time.Hour)
}

func TestCreateReservationStartsPending(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubReservationsRepo()
	svc := newServiceForTests(t, repo, newStubKeysRepo(key), now)

	start, end := testWindow(now)
	reservation, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		KeyID:    key.ID,
		PersonID: uuid.New(),
		StartsAt: start,
		EndsAt:   end,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if reservation.Status != enums.ReservationStatusPending {
		t.Fatalf("expected pending, got %s", reservation.Status)
	}
	if key.Status != enums.KeyStatusAvailable {
		t.Fatalf("pending reservation must not move the key, got %s", key.Status)
	}
}

func TestCreateReservationRejectsInvertedWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newServiceForTests(t, newStubReservationsRepo(), newStubKeysRepo(), now)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		KeyID:    uuid.New(),
		PersonID: uuid.New(),
		StartsAt: now.Add(3 * time.Hour),
		EndsAt:   now.Add(time.Hour),
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateReservationRejectsPastStart(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newServiceForTests(t, newStubReservationsRepo(), newStubKeysRepo(), now)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		KeyID:    uuid.New(),
		PersonID: uuid.New(),
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateReservationInactiveKey(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusInactive}
	svc := newServiceForTests(t, newStubReservationsRepo(), newStubKeysRepo(key), now)

	start, end := testWindow(now)
	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		KeyID:    key.ID,
		PersonID: uuid.New(),
		StartsAt: start,
		EndsAt:   end,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCreateReservationOverlapConflict(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	key := &models.Key{Code: "K-1", Status: enums.KeyStatusAvailable}
	repo := newStubReservationsRepo()
	repo.overlapping = 1
	svc := newServiceForTests(t, repo, newStubKeysRepo(key), now)

	start, end := testWindow(now)
	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		KeyID:    key.ID,
		PersonID: uuid.New(),
		StartsAt: start,
		EndsAt:   end,
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestConfirmMarksKeyReserved(t *testing.T) {
	key := &models.Key{ID: uuid.New(), Code: "K-1", Status: enums.KeyStatusAvailable}
	reservation := &models.Reservation{KeyID: key.ID, Status: enums.ReservationStatusPending}
	repo := newStubReservationsRepo(reservation)
	svc := newServiceForTests(t, repo, newStubKeysRepo(key), time.Time{})

	updated, err := svc.Confirm(context.Background(), uuid.New(), reservation.ID)
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if updated.Status != enums.ReservationStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if key.Status != enums.KeyStatusReserved {
		t.Fatalf("expected key reserved, got %s", key.Status)
	}
}

func TestConfirmNonPendingStateConflict(t *testing.T) {
	reservation := &models.Reservation{KeyID: uuid.New(), Status: enums.ReservationStatusUsed}
	repo := newStubReservationsRepo(reservation)
	svc := newServiceForTests(t, repo, newStubKeysRepo(), time.Time{})

	_, err := svc.Confirm(context.Background(), uuid.New(), reservation.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestMarkUsedReleasesKey(t *testing.T) {
	key := &models.Key{ID: uuid.New(), Code: "K-1", Status: enums.KeyStatusReserved}
	reservation := &models.Reservation{KeyID: key.ID, Status: enums.ReservationStatusConfirmed}
	repo := newStubReservationsRepo(reservation)
	svc := newServiceForTests(t, repo, newStubKeysRepo(key), time.Time{})

	updated, err := svc.MarkUsed(context.Background(), uuid.New(), reservation.ID)
	if err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}
	if updated.Status != enums.ReservationStatusUsed {
		t.Fatalf("expected used, got %s", updated.Status)
	}
	if key.Status != enums.KeyStatusAvailable {
		t.Fatalf("expected key released, got %s", key.Status)
	}
}

func TestMarkUsedKeepsKeyWhenOtherConfirmedHolds(t *testing.T) {
	key := &models.Key{ID: uuid.New(), Code: "K-1", Status: enums.KeyStatusReserved}
	reservation := &models.Reservation{KeyID: key.ID, Status: enums.ReservationStatusConfirmed}
	repo := newStubReservationsRepo(reservation)
	repo.confirmed = 1
	svc := newServiceForTests(t, repo, newStubKeysRepo(key), time.Time{})

	if _, err := svc.MarkUsed(context.Background(), uuid.New(), reservation.ID); err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}
	if key.Status != enums.KeyStatusReserved {
		t.Fatalf("expected key to stay reserved, got %s", key.Status)
	}
}

func TestCancelPendingLeavesLoanedKeyAlone(t *testing.T) {
	key := &models.Key{ID: uuid.New(), Code: "K-1", Status: enums.KeyStatusLoaned}
	reservation := &models.Reservation{KeyID: key.ID, Status: enums.ReservationStatusPending}
	repo := newStubReservationsRepo(reservation)
	svc := newServiceForTests(t, repo, newStubKeysRepo(key), time.Time{})

	updated, err := svc.Cancel(context.Background(), uuid.New(), reservation.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if updated.Status != enums.ReservationStatusCanceled {
		t.Fatalf("expected canceled, got %s", updated.Status)
	}
	if key.Status != enums.KeyStatusLoaned {
		t.Fatalf("expected loaned key untouched, got %s", key.Status)
	}
}

func TestCancelResolvedStateConflict(t *testing.T) {
	reservation := &models.Reservation{KeyID: uuid.New(), Status: enums.ReservationStatusCanceled}
	repo := newStubReservationsRepo(reservation)
	svc := newServiceForTests(t, repo, newStubKeysRepo(), time.Time{})

	_, err := svc.Cancel(context.Background(), uuid.New(), reservation.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}
