package people

import (
	"context"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes person persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a person repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new person row.
func (r *Repository) Create(ctx context.Context, person *models.Person) (*models.Person, error) {
	if err := r.db.WithContext(ctx).Create(person).Error; err != nil {
		return nil, err
	}
	return person, nil
}

// FindByID loads a person.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	var person models.Person
	if err := r.db.WithContext(ctx).First(&person, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &person, nil
}

// FindByCI loads a person by national ID.
func (r *Repository) FindByCI(ctx context.Context, ci string) (*models.Person, error) {
	var person models.Person
	if err := r.db.WithContext(ctx).First(&person, "ci = ?", ci).Error; err != nil {
		return nil, err
	}
	return &person, nil
}

// List returns people matching the filters using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Person, error) {
	query := r.db.WithContext(ctx).Model(&models.Person{})

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.search != "" {
		like := "%" + opts.search + "%"
		query = query.Where("ci LIKE ? OR first_names LIKE ? OR last_names LIKE ?", like, like, like)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Person
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists the person fields.
func (r *Repository) Update(ctx context.Context, person *models.Person) error {
	return r.db.WithContext(ctx).Save(person).Error
}

// Delete removes the person row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Person{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
