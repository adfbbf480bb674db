package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
	"gorm.io/gorm"
)

type alertsRepository interface {
	Create(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	List(ctx context.Context, opts listQuery) ([]models.Alert, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

// Service exposes the alert feed.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo alertsRepository
}

type ListParams struct {
	UnreadOnly bool
	Type       *enums.AlertType
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID          uuid.UUID       `json:"id"`
	Type        enums.AlertType `json:"type"`
	LoanID      *uuid.UUID      `json:"loan_id,omitempty"`
	KeyID       *uuid.UUID      `json:"key_id,omitempty"`
	Message     string          `json:"message"`
	GeneratedAt time.Time       `json:"generated_at"`
	Read        bool            `json:"read"`
}

type listQuery struct {
	unreadOnly bool
	alertType  *enums.AlertType
	limit      int
	cursor     *pkgpagination.Cursor
}

// NewService builds the alert service.
func NewService(repo alertsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("alerts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, listQuery{
		unreadOnly: params.UnreadOnly,
		alertType:  params.Type,
		limit:      pkgpagination.LimitWithBuffer(params.Limit),
		cursor:     cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing alerts")
	}

	result := &ListResult{Items: make([]ListItem, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for _, row := range rows {
		result.Items = append(result.Items, ListItem{
			ID:          row.ID,
			Type:        row.AlertType,
			LoanID:      row.LoanID,
			KeyID:       row.KeyID,
			Message:     row.Message,
			GeneratedAt: row.GeneratedAt,
			Read:        row.Read,
		})
	}
	if hasMore {
		last := rows[len(rows)-1]
		result.Cursor = pkgpagination.NextCursor(last.GeneratedAt, last.ID)
	}
	return result, nil
}

func (s *service) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking alert read")
	}
	return nil
}
