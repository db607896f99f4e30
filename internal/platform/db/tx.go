package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn returns the transaction bound to ctx, or the pool when there is none.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// TxFromContext retrieves the transaction started by InTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// TxRunner runs fn inside a single transaction. Repository calls made with
// the ctx passed to fn join that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type poolTxRunner struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

// NewTxRunner returns a TxRunner using read-committed isolation.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &poolTxRunner{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

func (r *poolTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer transaction.
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return pgx.BeginTxFunc(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}
