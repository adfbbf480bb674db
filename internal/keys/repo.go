package keys

import (
	"context"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes key persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a key repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new key row.
func (r *Repository) Create(ctx context.Context, key *models.Key) (*models.Key, error) {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, err
	}
	return key, nil
}

// FindByID loads a key with its facility and facility type.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Key, error) {
	var key models.Key
	err := r.db.WithContext(ctx).
		Preload("Facility").
		Preload("Facility.Type").
		First(&key, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// FindByCode loads a key by its normalized code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Key, error) {
	var key models.Key
	if err := r.db.WithContext(ctx).First(&key, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// LockByID loads the key row under FOR UPDATE inside the supplied transaction.
// Concurrent state transitions on the same key serialize here.
func (r *Repository) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Key, error) {
	var key models.Key
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&key, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// List returns keys matching the filters using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Key, error) {
	query := r.db.WithContext(ctx).Model(&models.Key{}).
		Preload("Facility")

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.facilityID != nil {
		query = query.Where("facility_id = ?", *opts.facilityID)
	}
	if opts.search != "" {
		query = query.Where("code LIKE ?", "%"+opts.search+"%")
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Key
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists the mutable key fields.
func (r *Repository) Update(ctx context.Context, key *models.Key) error {
	return r.db.WithContext(ctx).Save(key).Error
}

// UpdateStatusTx flips the key status inside the supplied transaction.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.KeyStatus) error {
	return tx.WithContext(ctx).Model(&models.Key{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Delete removes the key row. Foreign key references surface as errors.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Key{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HasActiveLoanTx reports whether the key has a loan in status A.
func (r *Repository) HasActiveLoanTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.Loan{}).
		Where("key_id = ? AND status = ?", keyID, enums.LoanStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasOpenReservationTx reports whether the key has a pending or confirmed reservation.
func (r *Repository) HasOpenReservationTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.Reservation{}).
		Where("key_id = ? AND status IN ?", keyID,
			[]enums.ReservationStatus{enums.ReservationStatusPending, enums.ReservationStatusConfirmed}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecentLoans returns the newest loans for the key, capped at limit.
func (r *Repository) RecentLoans(ctx context.Context, keyID uuid.UUID, limit int) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Person").
		Where("key_id = ?", keyID).
		Order("loaned_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RecentReservations returns the newest reservations for the key, capped at limit.
func (r *Repository) RecentReservations(ctx context.Context, keyID uuid.UUID, limit int) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Person").
		Where("key_id = ?", keyID).
		Order("starts_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AuthorizedPeople lists the authorization rows for the key.
func (r *Repository) AuthorizedPeople(ctx context.Context, keyID uuid.UUID) ([]models.AuthorizedPerson, error) {
	var rows []models.AuthorizedPerson
	err := r.db.WithContext(ctx).
		Preload("Person").
		Where("key_id = ?", keyID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AddAuthorized inserts an authorization row.
func (r *Repository) AddAuthorized(ctx context.Context, row *models.AuthorizedPerson) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// RemoveAuthorized deletes the authorization for the person/key pair.
func (r *Repository) RemoveAuthorized(ctx context.Context, keyID, personID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("key_id = ? AND person_id = ?", keyID, personID).
		Delete(&models.AuthorizedPerson{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
