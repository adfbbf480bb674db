package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes loan persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a loan repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts a loan row inside the supplied transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, loan *models.Loan) (*models.Loan, error) {
	if err := tx.WithContext(ctx).Create(loan).Error; err != nil {
		return nil, err
	}
	return loan, nil
}

// FindByID loads a loan with its key and person.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Key").
		Preload("Person").
		First(&loan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// LockByID loads the loan row under FOR UPDATE inside the supplied transaction.
func (r *Repository) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// CloseTx records the return outcome for the loan inside the transaction.
func (r *Repository) CloseTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.LoanStatus, returnedAt time.Time) error {
	return tx.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"returned_at": returnedAt,
		}).Error
}

// CancelTx marks the loan canceled inside the transaction.
func (r *Repository) CancelTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return tx.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ?", id).
		Update("status", enums.LoanStatusCanceled).Error
}

// List returns loans matching the filters using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Loan, error) {
	query := r.db.WithContext(ctx).Model(&models.Loan{}).
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

	var rows []models.Loan
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOverdue returns active loans whose due date passed before the cutoff,
// bounded by lookback to keep the cron scan cheap.
func (r *Repository) ListOverdue(ctx context.Context, cutoff, oldest time.Time) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Key").
		Preload("Person").
		Where("status = ? AND due_at IS NOT NULL AND due_at < ? AND due_at > ?",
			enums.LoanStatusActive, cutoff, oldest).
		Order("due_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
