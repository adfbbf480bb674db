package keys

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"github.com/keyward/keyward-backend/pkg/pagination"
)

func setupKeysTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	facilityTypes := `
CREATE TABLE IF NOT EXISTS facility_types (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	facilities := `
CREATE TABLE IF NOT EXISTS facilities (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  location TEXT,
  type_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'A',
  created_at DATETIME,
  updated_at DATETIME
);`
	keys := `
CREATE TABLE IF NOT EXISTS keys (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  num_copies INTEGER NOT NULL DEFAULT 1,
  facility_id TEXT NOT NULL,
  is_master INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'D',
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	loans := `
CREATE TABLE IF NOT EXISTS loans (
  id TEXT PRIMARY KEY,
  key_id TEXT NOT NULL,
  person_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  loaned_at DATETIME NOT NULL,
  due_at DATETIME,
  returned_at DATETIME,
  status TEXT NOT NULL DEFAULT 'A',
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	reservations := `
CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  key_id TEXT NOT NULL,
  person_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'P',
  created_at DATETIME,
  updated_at DATETIME
);`
	people := `
CREATE TABLE IF NOT EXISTS people (
  id TEXT PRIMARY KEY,
  first_names TEXT NOT NULL,
  last_names TEXT NOT NULL,
  ci TEXT NOT NULL UNIQUE,
  birth_date DATETIME,
  gender TEXT,
  email TEXT,
  phone TEXT,
  status TEXT NOT NULL DEFAULT 'A',
  created_at DATETIME,
  updated_at DATETIME
);`
	authorized := `
CREATE TABLE IF NOT EXISTS authorized_people (
  id TEXT PRIMARY KEY,
  person_id TEXT NOT NULL,
  key_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (person_id, key_id)
);`
	require.NoError(t, db.Exec(facilityTypes).Error)
	require.NoError(t, db.Exec(facilities).Error)
	require.NoError(t, db.Exec(keys).Error)
	require.NoError(t, db.Exec(loans).Error)
	require.NoError(t, db.Exec(reservations).Error)
	require.NoError(t, db.Exec(people).Error)
	require.NoError(t, db.Exec(authorized).Error)
	return db
}

func newFacility(t *testing.T, db *gorm.DB, code string) *models.Facility {
	t.Helper()

	facility := &models.Facility{
		ID:     uuid.New(),
		Code:   code,
		Name:   "Facility " + code,
		TypeID: uuid.New(),
		Status: enums.RecordStatusActive,
	}
	require.NoError(t, db.Create(facility).Error)
	return facility
}

func newKey(t *testing.T, db *gorm.DB, facility *models.Facility, code string, status enums.KeyStatus, created time.Time) *models.Key {
	t.Helper()

	key := &models.Key{
		ID:         uuid.New(),
		Code:       code,
		NumCopies:  1,
		FacilityID: facility.ID,
		Status:     status,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	require.NoError(t, db.Create(key).Error)
	return key
}

func TestRepositoryList_paginationAndFilters(t *testing.T) {
	db := setupKeysTestDB(t)
	repo := NewRepository(db)

	labs := newFacility(t, db, "LAB")
	offices := newFacility(t, db, "OFI")

	now := time.Now().UTC().Truncate(time.Second)
	older := newKey(t, db, labs, "LAB-01", enums.KeyStatusAvailable, now.Add(-time.Hour))
	newer := newKey(t, db, labs, "LAB-02", enums.KeyStatusLoaned, now)
	newKey(t, db, offices, "OFI-01", enums.KeyStatusAvailable, now.Add(-2*time.Hour))

	rows, err := repo.List(context.Background(), listQuery{limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)
	assert.Equal(t, "Facility LAB", rows[0].Facility.Name)

	cursor := &pagination.Cursor{CreatedAt: rows[1].CreatedAt, ID: rows[1].ID}
	second, err := repo.List(context.Background(), listQuery{limit: 2, cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "OFI-01", second[0].Code)

	available := enums.KeyStatusAvailable
	rows, err = repo.List(context.Background(), listQuery{limit: 10, status: &available})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = repo.List(context.Background(), listQuery{limit: 10, facilityID: &labs.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = repo.List(context.Background(), listQuery{limit: 10, search: "LAB-01"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, older.ID, rows[0].ID)
}

func TestRepositoryHasActiveLoanTx(t *testing.T) {
	db := setupKeysTestDB(t)
	repo := NewRepository(db)

	facility := newFacility(t, db, "LAB")
	key := newKey(t, db, facility, "LAB-01", enums.KeyStatusLoaned, time.Now().UTC())

	loan := &models.Loan{
		ID:       uuid.New(),
		KeyID:    key.ID,
		PersonID: uuid.New(),
		UserID:   uuid.New(),
		LoanedAt: time.Now().UTC(),
		Status:   enums.LoanStatusActive,
	}
	require.NoError(t, db.Create(loan).Error)

	active, err := repo.HasActiveLoanTx(context.Background(), db, key.ID)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, db.Model(&models.Loan{}).Where("id = ?", loan.ID).
		Update("status", enums.LoanStatusReturned).Error)

	active, err = repo.HasActiveLoanTx(context.Background(), db, key.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRepositoryHasOpenReservationTx(t *testing.T) {
	db := setupKeysTestDB(t)
	repo := NewRepository(db)

	facility := newFacility(t, db, "LAB")
	key := newKey(t, db, facility, "LAB-01", enums.KeyStatusAvailable, time.Now().UTC())

	open, err := repo.HasOpenReservationTx(context.Background(), db, key.ID)
	require.NoError(t, err)
	assert.False(t, open)

	reservation := &models.Reservation{
		ID:       uuid.New(),
		KeyID:    key.ID,
		PersonID: uuid.New(),
		UserID:   uuid.New(),
		StartsAt: time.Now().UTC().Add(time.Hour),
		EndsAt:   time.Now().UTC().Add(2 * time.Hour),
		Status:   enums.ReservationStatusPending,
	}
	require.NoError(t, db.Create(reservation).Error)

	open, err = repo.HasOpenReservationTx(context.Background(), db, key.ID)
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, db.Model(&models.Reservation{}).Where("id = ?", reservation.ID).
		Update("status", enums.ReservationStatusCanceled).Error)

	open, err = repo.HasOpenReservationTx(context.Background(), db, key.ID)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestRepositoryAuthorizedPeople(t *testing.T) {
	db := setupKeysTestDB(t)
	repo := NewRepository(db)

	facility := newFacility(t, db, "LAB")
	key := newKey(t, db, facility, "LAB-01", enums.KeyStatusAvailable, time.Now().UTC())
	personID := uuid.New()

	require.NoError(t, repo.AddAuthorized(context.Background(), &models.AuthorizedPerson{
		ID:       uuid.New(),
		PersonID: personID,
		KeyID:    key.ID,
	}))

	rows, err := repo.AuthorizedPeople(context.Background(), key.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, personID, rows[0].PersonID)

	require.NoError(t, repo.RemoveAuthorized(context.Background(), key.ID, personID))

	err = repo.RemoveAuthorized(context.Background(), key.ID, personID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryDeleteMissingKey(t *testing.T) {
	db := setupKeysTestDB(t)
	repo := NewRepository(db)

	err := repo.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
