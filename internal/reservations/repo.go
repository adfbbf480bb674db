package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes reservation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a reservation repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts a reservation row inside the supplied transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) (*models.Reservation, error) {
	if err := tx.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

// FindByID loads a reservation with its key and person.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Key").
		Preload("Person").
		First(&reservation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// LockByID loads the reservation row under FOR UPDATE inside the transaction.
func (r *Repository) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reservation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// UpdateStatusTx flips the reservation status inside the transaction.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.ReservationStatus) error {
	return tx.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// CountOverlappingTx counts open (P/C) reservations for the key whose window
// intersects [startsAt, endsAt), excluding the given reservation if any.
func (r *Repository) CountOverlappingTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID, startsAt, endsAt time.Time, exclude *uuid.UUID) (int64, error) {
	query := tx.WithContext(ctx).Model(&models.Reservation{}).
		Where("key_id = ? AND status IN ?", keyID,
			[]enums.ReservationStatus{enums.ReservationStatusPending, enums.ReservationStatusConfirmed}).
		Where("starts_at < ? AND ends_at > ?", endsAt, startsAt)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountConfirmedTx counts confirmed reservations for the key, excluding the
// given reservation. Used to decide whether a key leaves R.
func (r *Repository) CountConfirmedTx(ctx context.Context, tx *gorm.DB, keyID uuid.UUID, exclude uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.Reservation{}).
		Where("key_id = ? AND status = ? AND id <> ?", keyID, enums.ReservationStatusConfirmed, exclude).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// List returns reservations matching the filters using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Reservation, error) {
	query := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Preload("Key").
		Preload("Person")

	if opts.keyID != nil {
		query = query.Where("key_id = ?", *opts.keyID)
	}
	if opts.personID != nil {
		query = query.Where("person_id = ?", *opts.personID)
	}
	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Reservation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
