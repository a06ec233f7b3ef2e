package helpers

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// WrapTxAndCommit runs fn inside a transaction.
//
// When tx is non-nil fn joins the caller's transaction and nothing is committed
// here. Otherwise a new transaction is opened on db, rolled back if fn fails and
// committed if it succeeds; a failed commit is returned as the error.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
		if tx.Error != nil {
			var zero T
			return zero, errors.Wrap(tx.Error, "failed to begin transaction")
		}
	}

	res, err := fn(tx)

	if exists {
		return res, err
	}
	if err != nil {
		tx.Rollback()
		return res, err
	}
	if cErr := tx.Commit().Error; cErr != nil {
		var zero T
		return zero, errors.Wrap(cErr, "failed to commit transaction")
	}
	return res, nil
}

// WrapTxAndCommitWithContext is WrapTxAndCommit with ctx attached to every statement.
func WrapTxAndCommitWithContext[T any](ctx context.Context, fn func(*gorm.DB) (T, error), db *gorm.DB) (T, error) {
	return WrapTxAndCommit(fn, db.WithContext(ctx), nil)
}

// WrapTxAndCommitDetached is WrapTxAndCommitWithContext except that cancelling
// ctx no longer aborts the statements or the commit. fn must check ctx itself
// before any step that cannot be rolled back.
func WrapTxAndCommitDetached[T any](ctx context.Context, fn func(*gorm.DB) (T, error), db *gorm.DB) (T, error) {
	return WrapTxAndCommit(fn, db.WithContext(context.WithoutCancel(ctx)), nil)
}
