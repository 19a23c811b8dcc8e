package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"auction-market/internal/marketerrors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

// Migrations holds the schema, applied by cmd/migrator.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the files.
const MigrationsDir = "migrations"

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to dsn through the pgx stdlib driver and pings it.
func Open(ctx context.Context, dsn string, pool PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction.
// It commits if fn returns nil, otherwise it rolls back.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after fn error: %v (fn err: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translate maps driver errors onto the marketerrors taxonomy.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, marketerrors.ErrNotFound)
	case pgCode(err) == uniqueViolation:
		return fmt.Errorf("%s: %w", op, marketerrors.ErrAlreadyExists)
	case pgCode(err) == checkViolation:
		return fmt.Errorf("%s: constraint violated: %w", op, marketerrors.ErrInvalidInput)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// missingOrConflict explains why a version-conditioned update touched no row.
func missingOrConflict(ctx context.Context, q queryer, table, id, op string) error {
	var exists bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: check existence: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, marketerrors.ErrNotFound)
	}
	return fmt.Errorf("%s: version moved: %w", op, marketerrors.ErrConflict)
}
