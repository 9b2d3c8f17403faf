package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stwalsh4118/rentledger/api/internal/database"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
)

// SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories work
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore is the Store backed by a pgx pool.
type PostgresStore struct {
	db *database.Database
}

// NewPostgresStore creates a Store over db.
func NewPostgresStore(db *database.Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresRepositories binds every repository to conn.
func NewPostgresRepositories(conn DBTX) Repositories {
	return Repositories{
		Properties:    NewPropertyRepository(conn),
		Units:         NewUnitRepository(conn),
		Tenants:       NewTenantRepository(conn),
		Payments:      NewPaymentRepository(conn),
		Charges:       NewChargeRepository(conn),
		Notifications: NewNotificationRepository(conn),
	}
}

// Repos returns pool-bound repositories.
func (s *PostgresStore) Repos() Repositories {
	return NewPostgresRepositories(s.db.Pool)
}

// WithTx runs fn in a transaction, committing when it returns nil.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(repos Repositories) error) error {
	err := pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		return fn(NewPostgresRepositories(tx))
	})
	return mapTxError(err)
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// mapWriteError turns constraint violations into domain conflicts.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "idx_units_billing_reference":
		return domainerr.Wrapf(domainerr.ErrDuplicateBillingRef, "%s", pgErr.Detail)
	case "idx_payments_transaction":
		return domainerr.ErrDuplicatePayment
	case "idx_charges_tenant_month":
		return domainerr.ErrAlreadyBilled
	default:
		return domainerr.Wrapf(domainerr.ErrConflict, "%s", pgErr.ConstraintName)
	}
}

// mapTxError reports a transaction Postgres aborted for a deadlock or a
// serialization failure as a version conflict, so WithRetry runs it again.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %s (SQLSTATE %s)", ErrVersionConflict, pgErr.Message, pgErr.Code)
	default:
		return err
	}
}

// versionChecked converts a conditional update's command tag into
// ErrVersionConflict when nothing matched.
func versionChecked(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() != 1 {
		return ErrVersionConflict
	}
	return nil
}
