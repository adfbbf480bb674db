package facilities

import (
	"context"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes facility and facility type persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a facility repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new facility row.
func (r *Repository) Create(ctx context.Context, facility *models.Facility) (*models.Facility, error) {
	if err := r.db.WithContext(ctx).Create(facility).Error; err != nil {
		return nil, err
	}
	return facility, nil
}

// FindByID loads a facility with its type.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	var facility models.Facility
	err := r.db.WithContext(ctx).
		Preload("Type").
		First(&facility, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &facility, nil
}

// FindByCode loads a facility by code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Facility, error) {
	var facility models.Facility
	if err := r.db.WithContext(ctx).First(&facility, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &facility, nil
}

// List returns facilities matching the filters using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Facility, error) {
	query := r.db.WithContext(ctx).Model(&models.Facility{}).
		Preload("Type")

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.typeID != nil {
		query = query.Where("type_id = ?", *opts.typeID)
	}
	if opts.search != "" {
		query = query.Where("code LIKE ? OR name LIKE ?", "%"+opts.search+"%", "%"+opts.search+"%")
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Facility
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists the facility fields.
func (r *Repository) Update(ctx context.Context, facility *models.Facility) error {
	return r.db.WithContext(ctx).Save(facility).Error
}

// Delete removes the facility row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Facility{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListTypes returns every facility type ordered by name.
func (r *Repository) ListTypes(ctx context.Context) ([]models.FacilityType, error) {
	var rows []models.FacilityType
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateType inserts a new facility type.
func (r *Repository) CreateType(ctx context.Context, ft *models.FacilityType) (*models.FacilityType, error) {
	if err := r.db.WithContext(ctx).Create(ft).Error; err != nil {
		return nil, err
	}
	return ft, nil
}

// FindTypeByID loads a facility type.
func (r *Repository) FindTypeByID(ctx context.Context, id uuid.UUID) (*models.FacilityType, error) {
	var ft models.FacilityType
	if err := r.db.WithContext(ctx).First(&ft, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ft, nil
}
