package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	pkgpagination "github.com/keyward/keyward-backend/pkg/pagination"
)

type auditRepository interface {
	List(ctx context.Context, opts listQuery) ([]models.AuditLog, error)
}

// Service exposes the read side of the audit trail.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo auditRepository
}

type ListParams struct {
	Table     string
	Operation *enums.AuditOperation
	UserID    *uuid.UUID
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID         uuid.UUID            `json:"id"`
	Table      string               `json:"table"`
	Operation  enums.AuditOperation `json:"operation"`
	RecordID   *uuid.UUID           `json:"record_id,omitempty"`
	UserID     *uuid.UUID           `json:"user_id,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
	Before     *string              `json:"before,omitempty"`
	After      *string              `json:"after,omitempty"`
}

type listQuery struct {
	table     string
	operation *enums.AuditOperation
	userID    *uuid.UUID
	limit     int
	cursor    *pkgpagination.Cursor
}

// NewService builds the audit query service.
func NewService(repo auditRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
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
		table:     strings.TrimSpace(params.Table),
		operation: params.Operation,
		userID:    params.UserID,
		limit:     pkgpagination.LimitWithBuffer(params.Limit),
		cursor:    cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing audit rows")
	}

	result := &ListResult{Items: make([]ListItem, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for _, row := range rows {
		result.Items = append(result.Items, ListItem{
			ID:         row.ID,
			Table:      row.TableName,
			Operation:  row.Operation,
			RecordID:   row.RecordID,
			UserID:     row.UserID,
			OccurredAt: row.OccurredAt,
			Before:     row.Before,
			After:      row.After,
		})
	}
	if hasMore {
		last := rows[len(rows)-1]
		result.Cursor = pkgpagination.NextCursor(last.OccurredAt, last.ID)
	}
	return result, nil
}
