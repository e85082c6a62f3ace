package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base is embedded by the domain repositories. It carries either the pool or
// an open transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB scopes the connection to ctx. A nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Locked is DB with SELECT ... FOR UPDATE. It only holds the lock inside a
// transaction; sqlite ignores the clause.
func (b Base) Locked(ctx context.Context) *gorm.DB {
	return b.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// Bind returns a Base running on tx. A nil tx keeps the current connection.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// PurgeBefore deletes rows of model whose column is older than cutoff.
func (b Base) PurgeBefore(ctx context.Context, model any, column string, cutoff time.Time) (int64, error) {
	res := b.DB(ctx).Where(clause.Lt{Column: clause.Column{Name: column}, Value: cutoff}).Delete(model)
	return res.RowsAffected, res.Error
}

// First loads one T matching the conditions. Missing rows return
// gorm.ErrRecordNotFound.
func First[T any](db *gorm.DB, conds ...any) (*T, error) {
	var row T
	if err := db.First(&row, conds...).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
