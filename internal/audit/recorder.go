package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"github.com/keyward/keyward-backend/pkg/logger"
	"gorm.io/gorm"
)

// Entry describes a single mutation to be written to the audit trail.
type Entry struct {
	Table     string
	Operation enums.AuditOperation
	RecordID  *uuid.UUID
	UserID    *uuid.UUID
	Before    any
	After     any
}

// Recorder persists audit trail rows. Failures are logged, never propagated:
// an audit write must not roll back the business mutation it describes.
type Recorder struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewRecorder builds an audit recorder over the shared connection.
func NewRecorder(db *gorm.DB, logg *logger.Logger) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recorder{db: db, logg: logg}, nil
}

// Record writes the entry using the recorder's own connection.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	r.RecordTx(ctx, r.db, entry)
}

// RecordTx writes the entry on the provided transaction so the row commits
// together with the mutation it audits.
func (r *Recorder) RecordTx(ctx context.Context, tx *gorm.DB, entry Entry) {
	if tx == nil {
		tx = r.db
	}

	row := models.AuditLog{
		TableName:  entry.Table,
		Operation:  entry.Operation,
		RecordID:   entry.RecordID,
		UserID:     entry.UserID,
		OccurredAt: time.Now().UTC(),
		Before:     marshalSnapshot(entry.Before),
		After:      marshalSnapshot(entry.After),
	}

	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		r.logg.Error(ctx, "audit write failed", err)
	}
}

func marshalSnapshot(v any) *string {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}
