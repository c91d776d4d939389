// Package db provides PostgreSQL-backed repository implementations for the
// Pawtrack platform. All repositories accept a DBTX interface that is
// satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx (for
// transactional execution), enabling clean transaction support.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pawtrack/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner executes functions inside a serializable transaction holding a
// per-account advisory lock. Every mutation that reads quota state and then
// writes based on it (pet requests, approvals, plan changes, reconciliation)
// runs through here, so concurrent mutations against the same account
// serialize and cannot interleave past the quota check.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a TxRunner backed by the given pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// InTx runs fn inside a serializable transaction. Before fn executes, the
// transaction takes pg_advisory_xact_lock keyed on userKey, so all critical
// sections for the same account run one at a time. The lock is released
// automatically at commit or rollback.
//
// fn's error is returned as-is after rollback; begin and commit errors are
// wrapped as ErrCodeInternalDB.
func (t *TxRunner) InTx(ctx context.Context, userKey string, fn func(tx DBTX) error) error {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userKey); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to acquire account lock for %s", userKey), err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}

// Pool exposes the underlying pool for read-only paths that do not need the
// advisory-lock critical section.
func (t *TxRunner) Pool() *pgxpool.Pool {
	return t.pool
}
