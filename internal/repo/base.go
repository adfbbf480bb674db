package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is the shared foundation domain repositories embed.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository over the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to the supplied context, or the raw
// connection when ctx is nil.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
