package audit

import (
	"context"

	"github.com/keyward/keyward-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads the audit trail. Writes go through Recorder.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an audit repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns audit rows, newest first.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if opts.table != "" {
		query = query.Where("table_name = ?", opts.table)
	}
	if opts.operation != nil {
		query = query.Where("operation = ?", *opts.operation)
	}
	if opts.userID != nil {
		query = query.Where("user_id = ?", *opts.userID)
	}
	if opts.cursor != nil {
		query = query.Where("(occurred_at < ?) OR (occurred_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("occurred_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.AuditLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
