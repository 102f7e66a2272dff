package repository

import (
	"context"
	"database/sql"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// TxManager runs functions inside a database transaction.  The
// transaction travels in the context handed to fn, so every repository
// call made with that context joins it.  Nested calls reuse the outer
// transaction.
type TxManager struct {
	db *sql.DB
}

// NewTxManager returns a TxManager bound to db.
func NewTxManager(db *sql.DB) *TxManager { return &TxManager{db: db} }

// WithTx begins a READ COMMITTED transaction, calls fn and commits when
// fn returns nil.  Any error from fn rolls the transaction back and is
// returned unchanged.  READ COMMITTED makes reads issued after a
// SELECT ... FOR UPDATE see rows committed by the previous lock holder.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}
