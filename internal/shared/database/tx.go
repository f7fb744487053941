package database

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs fn as one atomic unit of work. Implementations join an
// already open transaction carried by ctx instead of nesting a new one, so a
// service can call another service's transactional method from inside its
// own unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// GormTransactor is the Postgres backed Transactor.
type GormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (t *GormTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn returns the transaction bound to ctx, or db scoped to ctx when no
// transaction is open. Repositories call it at the start of every method.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// InTx reports whether ctx carries an open gorm transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// RunInTx is WithinTx for repositories that only hold a *gorm.DB
func RunInTx(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	return NewGormTransactor(db).WithinTx(ctx, fn)
}
