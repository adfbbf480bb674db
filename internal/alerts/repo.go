package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes alert persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an alert repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new alert row.
func (r *Repository) Create(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

// FindByID loads an alert.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// List returns alerts, newest first.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Alert, error) {
	query := r.db.WithContext(ctx).Model(&models.Alert{})

	if opts.unreadOnly {
		query = query.Where("read = ?", false)
	}
	if opts.alertType != nil {
		query = query.Where("alert_type = ?", *opts.alertType)
	}
	if opts.cursor != nil {
		query = query.Where("(generated_at < ?) OR (generated_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("generated_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Alert
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkRead flips the read flag.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HasRecentForLoan reports whether an alert of the given type was generated
// for the loan after the cutoff. Keeps the cron job from spamming duplicates.
func (r *Repository) HasRecentForLoan(ctx context.Context, loanID uuid.UUID, alertType enums.AlertType, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("loan_id = ? AND alert_type = ? AND generated_at > ?", loanID, alertType, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
